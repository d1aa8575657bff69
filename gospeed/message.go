package main

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

const (
	sentinel      = "STOP" // end-of-transmission message
	maxBuffSize   = 10000
	readSize      = maxBuffSize - 1
	listenBacklog = 5 // pending connections per listener
)

var (
	errStoppedByPeer   = errors.New("connection stopped by peer")
	errPeerClosed      = errors.New("connection closed by peer")
	errInterrupted     = errors.New("interrupted")
	errBufferSize      = errors.New("buffer size out of range")
	errResolve         = errors.New("failed resolving address")
	errUnknownProtocol = errors.New("unknown protocol")
)

type protocol int

const (
	protoLocal protocol = iota
	protoIPv4
	protoIPv6
)

var protocols = []protocol{protoLocal, protoIPv4, protoIPv6}

func (p protocol) String() string {
	switch p {
	case protoLocal:
		return "local"
	case protoIPv4:
		return "ipv4"
	case protoIPv6:
		return "ipv6"
	}
	return "protocol(" + strconv.Itoa(int(p)) + ")"
}

// tag is the short label used in diagnostics, e.g. "failed binding socket {IPv4}".
func (p protocol) tag() string {
	switch p {
	case protoLocal:
		return "LOCAL"
	case protoIPv4:
		return "IPv4"
	case protoIPv6:
		return "IPv6"
	}
	return p.String()
}

// marker is the inert filler byte a client streams on this protocol.
func (p protocol) marker() byte {
	return 'a' + byte(p)
}

func parseProtocol(s string) (protocol, error) {
	for _, p := range protocols {
		if s == p.String() {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", errUnknownProtocol, s)
}

type config struct {
	socketPath     string
	ipv4Port       int
	ipv6Port       int
	reportInterval int // seconds
	reportFile     string
	metricsAddr    string
	defaultPort    string // default metrics port if missing in metricsAddr
	proto          string
	address        string
	port           int
	iface          string
	bufferSize     int
	logLevel       string
	logFormat      string
	isClient       bool
	showExamples   bool
}

// listenAddr is the wildcard address a server binds for p.
func (app *config) listenAddr(p protocol) (network, address string) {
	switch p {
	case protoIPv4:
		return "tcp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(app.ipv4Port))
	case protoIPv6:
		return "tcp6", net.JoinHostPort("::", strconv.Itoa(app.ipv6Port))
	}
	return "unix", app.socketPath
}

type call func(p []byte) (n int, err error)
