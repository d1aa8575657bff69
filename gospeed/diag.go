package main

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type origin int

const (
	originClient origin = iota
	originServer
	originGeneral
)

func (o origin) String() string {
	switch o {
	case originClient:
		return "CLIENT"
	case originServer:
		return "SERVER"
	}
	return "GENERAL"
}

type severity int

const (
	severityNormal severity = iota
	severityFatal
)

// fatalError is what a unit returns after a fatal diagnostic. Returning it
// ends the unit: a goroutine stops, the process exits with status 1.
type fatalError struct {
	pid    int
	origin origin
	err    error
}

func (e *fatalError) Error() string {
	return fmt.Sprintf("[PID: %d] <%s> %v", e.pid, e.origin, e.err)
}

func (e *fatalError) Unwrap() error {
	return e.err
}

var osExit = os.Exit

// units hands out ids to acceptor and worker goroutines, in place of the
// pid a forked child would have.
var units atomic.Int64

func nextUnit() int {
	return int(units.Inc())
}

type diagnostics struct {
	logger *zap.Logger
}

func newDiagnostics(logger *zap.Logger) *diagnostics {
	return &diagnostics{logger: logger}
}

// report emits one diagnostic. On severityFatal it returns the error the
// calling unit has to return to terminate itself.
func (d *diagnostics) report(pid int, o origin, sev severity, msg string) error {
	return d.emit(pid, o, sev, errors.New(msg))
}

// fail reports err as fatal, keeping it in the returned chain for errors.Is.
func (d *diagnostics) fail(pid int, o origin, err error) error {
	return d.emit(pid, o, severityFatal, err)
}

func (d *diagnostics) emit(pid int, o origin, sev severity, err error) error {
	fields := []zap.Field{zap.Int("pid", pid), zap.Stringer("origin", o)}

	if sev != severityFatal {
		d.logger.Warn("[[ ERROR ]] "+err.Error(), fields...)
		return nil
	}

	d.logger.Error("[[ FATAL ERROR ]] "+err.Error(), fields...)
	return &fatalError{pid: pid, origin: o, err: err}
}

// exit terminates the process. The serving and streaming loops never return
// on success, so every path through here is a failure.
func (d *diagnostics) exit(err error) {
	if err != nil {
		d.logger.Debug("exit", zap.Error(err))
	}
	_ = d.logger.Sync()
	osExit(1)
}
