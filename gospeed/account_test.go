package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

func TestSharedStatsConcurrentIncrements(t *testing.T) {
	const (
		writers = 32
		rounds  = 500
	)

	var (
		stats sharedStats
		g     errgroup.Group
		want  [3]int64
	)

	for w := 0; w < writers; w++ {
		p := protocols[w%len(protocols)]
		n := w + 1
		want[p] += int64(n * rounds)

		g.Go(func() error {
			for i := 0; i < rounds; i++ {
				stats.increment(p, n)
			}
			return nil
		})
	}

	assert.NoError(t, g.Wait())

	snap := stats.sum()
	assert.Equal(t, want[protoLocal], snap.Local)
	assert.Equal(t, want[protoIPv4], snap.IPv4)
	assert.Equal(t, want[protoIPv6], snap.IPv6)
	assert.Equal(t, want[0]+want[1]+want[2], snap.Total)
}

func TestSharedStatsResetThenSum(t *testing.T) {
	var stats sharedStats

	stats.increment(protoLocal, 10)
	stats.increment(protoIPv4, 20)
	stats.increment(protoIPv6, 30)
	stats.sum()

	stats.reset()

	assert.Equal(t, snapshot{}, stats.sum())
	assert.Zero(t, stats.total.Load())
}

func TestSharedStatsTotalOnlyOnSum(t *testing.T) {
	var stats sharedStats

	stats.increment(protoIPv4, 7)
	assert.Zero(t, stats.total.Load())

	assert.Equal(t, snapshot{IPv4: 7, Total: 7}, stats.sum())
	assert.EqualValues(t, 7, stats.total.Load())
}

func TestSharedStatsCounter(t *testing.T) {
	var stats sharedStats

	for _, p := range protocols {
		stats.counter(p).Add(int64(p) + 1)
	}

	assert.Equal(t, snapshot{Local: 1, IPv4: 2, IPv6: 3, Total: 6}, stats.sum())
}

func TestMbps(t *testing.T) {
	tests := []struct {
		size     int64
		interval int
		want     int64
	}{
		{0, 1, 0},
		{124999, 1, 0},
		{125000, 1, 1},
		{249999, 1, 1},
		{625000, 2, 2},
		{625000, 5, 1},
		{625000, 6, 0},
		{1249999, 3, 3},
		{1250000, 3, 3},
		{375000, 4, 0},
		{12500000000, 10, 10000},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, mbps(tt.size, tt.interval), "size=%d interval=%d", tt.size, tt.interval)
	}
}

func TestThroughputString(t *testing.T) {
	snap := snapshot{Local: 625000, IPv4: 1250000, IPv6: 125000, Total: 2000000}

	got := snap.throughput(2)

	assert.Equal(t, throughput{Local: 2, IPv4: 5, IPv6: 0, Total: 8}, got)
	assert.Equal(t,
		"Local TCP speed: 2 [Mb/s]\nTCP/IPv4 speed: 5 [Mb/s]\nTCP/IPv6 speed: 0 [Mb/s]\n\nTotal speed: 8 [Mb/s]\n",
		got.String())
}
