package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"strconv"
	"time"

	"go.uber.org/zap"
)

func openClient(app *config, logger *zap.Logger, diag *diagnostics) error {
	pid := os.Getpid()

	p, err := parseProtocol(app.proto)
	if err != nil {
		return diag.fail(pid, originClient, err)
	}

	if err := validateBufferSize(app.bufferSize); err != nil {
		return diag.fail(pid, originClient, err)
	}

	addr, err := resolveTarget(p, app)
	if err != nil {
		return diag.fail(pid, originClient, err)
	}

	ignoreStopSignals()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, addr.Network(), addr.String())
	if err != nil {
		return diag.fail(pid, originClient, fmt.Errorf("failed connecting to socket {%s}: %w", p.tag(), err))
	}

	logger.Info("openClient: connected",
		zap.String("proto", p.tag()), zap.Stringer("remote", conn.RemoteAddr()), zap.Int("size", app.bufferSize))

	return newStreamer(conn, p, app.bufferSize, pid, logger, diag).run(ctx)
}

func validateBufferSize(size int) error {
	if size < 1 || size > maxBuffSize {
		return fmt.Errorf("%w: %d not in [1, %d]", errBufferSize, size, maxBuffSize)
	}
	return nil
}

// resolveTarget builds the server address for p: a hostname or IPv4 literal,
// an IPv6 literal scoped to app.iface, or a socket path.
func resolveTarget(p protocol, app *config) (net.Addr, error) {
	switch p {
	case protoLocal:
		if app.socketPath == "" {
			return nil, fmt.Errorf("%w {%s}: empty socket path", errResolve, p.tag())
		}
		return &net.UnixAddr{Name: app.socketPath, Net: "unix"}, nil

	case protoIPv4:
		addr, err := net.ResolveTCPAddr("tcp4", net.JoinHostPort(app.address, strconv.Itoa(app.port)))
		if err != nil {
			return nil, fmt.Errorf("%w {%s}: %v", errResolve, p.tag(), err)
		}
		return addr, nil

	case protoIPv6:
		ip, err := netip.ParseAddr(app.address)
		if err != nil {
			return nil, fmt.Errorf("%w {%s}: %v", errResolve, p.tag(), err)
		}
		if !ip.Is6() {
			return nil, fmt.Errorf("%w {%s}: %s is not an IPv6 address", errResolve, p.tag(), app.address)
		}
		if app.iface != "" {
			ip = ip.WithZone(app.iface)
		}
		return net.TCPAddrFromAddrPort(netip.AddrPortFrom(ip, uint16(app.port))), nil
	}

	return nil, fmt.Errorf("%w: %v", errUnknownProtocol, p)
}

// streamer owns the client connection. The send loop and the interrupt path
// both go through it, so the shutdown always closes the right handle.
type streamer struct {
	conn   net.Conn
	proto  protocol
	buf    []byte
	pid    int
	logger *zap.Logger
	diag   *diagnostics
}

func newStreamer(conn net.Conn, p protocol, size, pid int, logger *zap.Logger, diag *diagnostics) *streamer {
	return &streamer{
		conn:   conn,
		proto:  p,
		buf:    fillBuf(p, size),
		pid:    pid,
		logger: logger,
		diag:   diag,
	}
}

// run sends the filler buffer until ctx is cancelled or a write fails.
// Cancellation aborts an in-flight write through the write deadline, then
// the sentinel goes out on its own before the connection is closed.
func (s *streamer) run(ctx context.Context) error {
	aborted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetWriteDeadline(time.Now())
		close(aborted)
	})
	defer stop()

	s.logger.Debug("streamer: sending", zap.Int("pid", s.pid), zap.String("proto", s.proto.tag()), zap.Int("size", len(s.buf)))

	for {
		if _, err := s.conn.Write(s.buf); err != nil {
			if ctx.Err() != nil {
				return s.shutdown(stop, aborted)
			}
			s.conn.Close()
			return s.diag.fail(s.pid, originClient, fmt.Errorf("failed sending message {%s}: %w", s.proto.tag(), err))
		}

		if ctx.Err() != nil {
			return s.shutdown(stop, aborted)
		}
	}
}

func (s *streamer) shutdown(stop func() bool, aborted <-chan struct{}) error {
	if !stop() {
		<-aborted
	}

	_ = s.diag.report(s.pid, originClient, severityNormal, fmt.Sprintf("interrupt received, sending end of transmission {%s}", s.proto.tag()))

	if err := s.conn.SetWriteDeadline(time.Time{}); err != nil {
		s.conn.Close()
		return s.diag.fail(s.pid, originClient, fmt.Errorf("failed sending end of transmission {%s}: %w", s.proto.tag(), err))
	}

	if _, err := s.conn.Write([]byte(sentinel)); err != nil {
		s.conn.Close()
		return s.diag.fail(s.pid, originClient, fmt.Errorf("failed sending end of transmission {%s}: %w", s.proto.tag(), err))
	}

	if err := s.conn.Close(); err != nil {
		return s.diag.fail(s.pid, originClient, fmt.Errorf("failed closing socket {%s}: %w", s.proto.tag(), err))
	}

	return fmt.Errorf("streamer {%s}: %w", s.proto.tag(), errInterrupted)
}

func fillBuf(p protocol, size int) []byte {
	return bytes.Repeat([]byte{p.marker()}, size)
}
