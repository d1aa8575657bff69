package main

import (
	"fmt"

	"go.uber.org/atomic"
)

// sharedStats holds the bytes received per protocol since the last reset.
// Workers only ever touch their own protocol's counter; sum and reset are
// reserved to the reporter and take no lock, so a reset racing an increment
// may land that increment on either side of it.
type sharedStats struct {
	local atomic.Int64
	ipv4  atomic.Int64
	ipv6  atomic.Int64
	total atomic.Int64 // valid only right after sum
}

type snapshot struct {
	Local int64
	IPv4  int64
	IPv6  int64
	Total int64
}

func (s *sharedStats) counter(p protocol) *atomic.Int64 {
	switch p {
	case protoIPv4:
		return &s.ipv4
	case protoIPv6:
		return &s.ipv6
	}
	return &s.local
}

func (s *sharedStats) increment(p protocol, n int) {
	s.counter(p).Add(int64(n))
}

func (s *sharedStats) reset() {
	s.local.Store(0)
	s.ipv4.Store(0)
	s.ipv6.Store(0)
	s.total.Store(0)
}

func (s *sharedStats) sum() snapshot {
	snap := snapshot{
		Local: s.local.Load(),
		IPv4:  s.ipv4.Load(),
		IPv6:  s.ipv6.Load(),
	}
	snap.Total = snap.Local + snap.IPv4 + snap.IPv6
	s.total.Store(snap.Total)

	return snap
}

const reportFormat = "Local TCP speed: %d [Mb/s]\nTCP/IPv4 speed: %d [Mb/s]\nTCP/IPv6 speed: %d [Mb/s]\n\nTotal speed: %d [Mb/s]\n"

// mbps converts a byte count gathered over interval seconds to megabits per
// second. Both divisions truncate, megabits first.
func mbps(size int64, interval int) int64 {
	megabits := (8 * size) / 1000000
	return megabits / int64(interval)
}

type throughput struct {
	Local int64
	IPv4  int64
	IPv6  int64
	Total int64
}

func (s snapshot) throughput(interval int) throughput {
	return throughput{
		Local: mbps(s.Local, interval),
		IPv4:  mbps(s.IPv4, interval),
		IPv6:  mbps(s.IPv6, interval),
		Total: mbps(s.Total, interval),
	}
}

func (t throughput) String() string {
	return fmt.Sprintf(reportFormat, t.Local, t.IPv4, t.IPv6, t.Total)
}
