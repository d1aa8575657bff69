package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"

	"go.uber.org/zap"
)

type server struct {
	app     *config
	stats   *sharedStats
	metrics *metrics
	logger  *zap.Logger
	diag    *diagnostics
}

func newServer(app *config, logger *zap.Logger, diag *diagnostics) *server {
	s := &server{
		app:    app,
		stats:  &sharedStats{},
		logger: logger,
		diag:   diag,
	}

	if app.metricsAddr != "" {
		s.metrics = newMetrics()
	}

	return s
}

// openServer starts one acceptor per protocol and then runs the reporter in
// the calling goroutine. It only returns on a fatal error.
func openServer(app *config, logger *zap.Logger, diag *diagnostics) error {
	pid := os.Getpid()
	srv := newServer(app, logger, diag)

	if srv.metrics != nil {
		go srv.serveMetrics(appendPortIfMissing(app.metricsAddr, app.defaultPort))
	}

	for _, p := range protocols {
		go srv.listenStream(p)
	}

	if err := createReport(app.reportFile); err != nil {
		return diag.fail(pid, originServer, fmt.Errorf("failed trying to create report file: %w", err))
	}

	return newReporter(srv, pid).run()
}

func (s *server) serveMetrics(addr string) error {
	id := nextUnit()
	s.logger.Info("serveMetrics: exposing metrics", zap.Int("unit", id), zap.String("addr", addr))

	if err := s.metrics.serve(addr); err != nil {
		return s.diag.fail(id, originServer, fmt.Errorf("failed serving metrics on %s: %w", addr, err))
	}

	return nil
}

// listenStream is the acceptor of one protocol. Its failures never reach the
// other protocols.
func (s *server) listenStream(p protocol) error {
	id := nextUnit()
	network, address := s.app.listenAddr(p)

	if p == protoLocal {
		// stale socket file from a previous run
		if err := os.Remove(address); err != nil && !errors.Is(err, fs.ErrNotExist) {
			_ = s.diag.report(id, originServer, severityNormal, fmt.Sprintf("failed unlinking %s {%s}: %v", address, p.tag(), err))
		}
	}

	l, err := listen(p, s.app)
	if err != nil {
		return s.diag.fail(id, originServer, err)
	}
	defer l.Close()

	s.logger.Info("listenStream: available",
		zap.Int("unit", id), zap.String("proto", p.tag()), zap.String("network", network), zap.Stringer("addr", l.Addr()))

	return s.acceptLoop(l, p, id)
}

func (s *server) acceptLoop(l net.Listener, p protocol, id int) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return s.diag.fail(id, originServer, fmt.Errorf("failed trying to accept client {%s}: %w", p.tag(), err))
		}

		worker := nextUnit()
		s.logger.Info("acceptLoop: new client accepted",
			zap.Int("unit", id), zap.String("proto", p.tag()), zap.Int("worker", worker))

		go s.handleConnection(conn, p, worker)
	}
}

// handleConnection is the worker owning conn. It always returns an error:
// the sentinel, EOF and read failures all end the connection.
func (s *server) handleConnection(conn net.Conn, p protocol, id int) error {
	defer conn.Close()

	s.metrics.connOpened(p)
	defer s.metrics.connClosed(p)

	return s.receive(conn.Read, p, id)
}

// receive treats every read as one message. Only a read of exactly the
// sentinel stops the loop; the sentinel inside a longer read is payload.
func (s *server) receive(read call, p protocol, id int) error {
	received := s.metrics.receivedCounter(p)
	buf := make([]byte, readSize)

	for {
		n, err := read(buf)

		if n == len(sentinel) && string(buf[:n]) == sentinel {
			_ = s.diag.report(id, originServer, severityNormal, fmt.Sprintf("end of transmission received {%s}", p.tag()))
			return fmt.Errorf("handleConnection {%s}: %w", p.tag(), errStoppedByPeer)
		}

		if n > 0 {
			s.stats.increment(p, n)
			if received != nil {
				received.Add(float64(n))
			}
		}

		if errors.Is(err, io.EOF) {
			_ = s.diag.report(id, originServer, severityNormal, fmt.Sprintf("connection closed without end of transmission {%s}", p.tag()))
			return fmt.Errorf("handleConnection {%s}: %w", p.tag(), errPeerClosed)
		}

		if err != nil {
			return s.diag.fail(id, originServer, fmt.Errorf("failed receiving message {%s}: %w", p.tag(), err))
		}
	}
}
