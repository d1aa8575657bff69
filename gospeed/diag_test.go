package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDiagnosticsNormal(t *testing.T) {
	logger, logs := newTestLogger()
	d := newDiagnostics(logger)

	err := d.report(42, originClient, severityNormal, "something odd")
	assert.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, "[[ ERROR ]] something odd", entries[0].Message)
	assert.Equal(t, map[string]interface{}{"pid": int64(42), "origin": "CLIENT"}, entries[0].ContextMap())
}

func TestDiagnosticsFatal(t *testing.T) {
	logger, logs := newTestLogger()
	d := newDiagnostics(logger)

	err := d.report(7, originServer, severityFatal, "failed binding socket {IPv4}")
	require.Error(t, err)

	var fe *fatalError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 7, fe.pid)
	assert.Equal(t, originServer, fe.origin)
	assert.Equal(t, "[PID: 7] <SERVER> failed binding socket {IPv4}", err.Error())

	entries := logs.FilterMessage("[[ FATAL ERROR ]] failed binding socket {IPv4}").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
}

func TestDiagnosticsFailKeepsCause(t *testing.T) {
	logger, _ := newTestLogger()
	d := newDiagnostics(logger)

	err := d.fail(1, originGeneral, errBufferSize)

	assert.ErrorIs(t, err, errBufferSize)
	assert.Contains(t, err.Error(), "<GENERAL>")
}

func TestDiagnosticsExit(t *testing.T) {
	defer func(f func(int)) { osExit = f }(osExit)

	var code = -1
	osExit = func(c int) { code = c }

	logger, _ := newTestLogger()
	d := newDiagnostics(logger)

	d.exit(errInterrupted)
	assert.Equal(t, 1, code)

	code = -1
	d.exit(nil)
	assert.Equal(t, 1, code)
}

func TestNextUnitIncreases(t *testing.T) {
	a := nextUnit()
	b := nextUnit()
	assert.Greater(t, b, a)
}
