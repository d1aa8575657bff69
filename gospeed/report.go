package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

type reporter struct {
	stats    *sharedStats
	metrics  *metrics
	interval int
	unit     time.Duration
	path     string
	pid      int
	logger   *zap.Logger
	diag     *diagnostics
}

func newReporter(s *server, pid int) *reporter {
	return &reporter{
		stats:    s.stats,
		metrics:  s.metrics,
		interval: s.app.reportInterval,
		unit:     time.Second,
		path:     s.app.reportFile,
		pid:      pid,
		logger:   s.logger,
		diag:     s.diag,
	}
}

// run reports every interval for the life of the process.
func (r *reporter) run() error {
	for {
		time.Sleep(time.Duration(r.interval) * r.unit)

		if err := r.step(); err != nil {
			return err
		}
	}
}

func (r *reporter) step() error {
	t := r.stats.sum().throughput(r.interval)

	if err := writeReport(r.path, t.String()); err != nil {
		return r.diag.fail(r.pid, originServer, fmt.Errorf("failed trying to write report file: %w", err))
	}

	r.logger.Info("reporter: throughput [Mb/s]",
		zap.Int64("local", t.Local), zap.Int64("ipv4", t.IPv4), zap.Int64("ipv6", t.IPv6), zap.Int64("total", t.Total))
	r.metrics.observe(t)

	r.stats.reset()

	return nil
}

func createReport(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	return f.Close()
}

// writeReport replaces the whole content of path.
func writeReport(path, report string) error {
	return os.WriteFile(path, []byte(report), 0o644)
}
