package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zeroReport = "Local TCP speed: 0 [Mb/s]\nTCP/IPv4 speed: 0 [Mb/s]\nTCP/IPv6 speed: 0 [Mb/s]\n\nTotal speed: 0 [Mb/s]\n"

func newTestReporter(t *testing.T, app *config) *reporter {
	t.Helper()

	if app.reportFile == "" {
		app.reportFile = filepath.Join(t.TempDir(), "log.txt")
	}

	srv, _ := newTestServer(t, app)
	return newReporter(srv, 1)
}

func TestReporterStepWritesAndResets(t *testing.T) {
	r := newTestReporter(t, &config{reportInterval: 2})

	r.stats.increment(protoLocal, 625000)
	r.stats.increment(protoIPv4, 1250000)

	require.NoError(t, r.step())

	report, err := os.ReadFile(r.path)
	require.NoError(t, err)
	assert.Equal(t,
		"Local TCP speed: 2 [Mb/s]\nTCP/IPv4 speed: 5 [Mb/s]\nTCP/IPv6 speed: 0 [Mb/s]\n\nTotal speed: 7 [Mb/s]\n",
		string(report))

	assert.Equal(t, snapshot{}, r.stats.sum())
}

func TestReporterOverwrites(t *testing.T) {
	r := newTestReporter(t, &config{reportInterval: 1})
	require.NoError(t, os.WriteFile(r.path, make([]byte, 4096), 0o644))

	require.NoError(t, r.step())

	report, err := os.ReadFile(r.path)
	require.NoError(t, err)
	assert.Equal(t, zeroReport, string(report))
}

func TestReporterIdleInterval(t *testing.T) {
	r := newTestReporter(t, &config{reportInterval: 1})
	r.unit = 10 * time.Millisecond
	require.NoError(t, createReport(r.path))

	go r.run()

	assert.Eventually(t, func() bool {
		report, err := os.ReadFile(r.path)
		return err == nil && string(report) == zeroReport
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, snapshot{}, r.stats.sum())
}

func TestReporterWriteFailure(t *testing.T) {
	r := newTestReporter(t, &config{
		reportInterval: 1,
		reportFile:     filepath.Join(t.TempDir(), "missing", "log.txt"),
	})
	r.stats.increment(protoIPv6, 10)

	err := r.step()

	var fe *fatalError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, originServer, fe.origin)
	// nothing was reported, so nothing is dropped
	assert.EqualValues(t, 10, r.stats.ipv6.Load())
}

func TestReporterMetrics(t *testing.T) {
	r := newTestReporter(t, &config{reportInterval: 1, metricsAddr: "localhost"})
	r.stats.increment(protoIPv6, 250000)

	require.NoError(t, r.step())

	assert.Equal(t, float64(2), testutil.ToFloat64(r.metrics.throughput.WithLabelValues("ipv6")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.metrics.throughput.WithLabelValues("total")))
	assert.Equal(t, float64(0), testutil.ToFloat64(r.metrics.throughput.WithLabelValues("local")))
}

func TestCreateReportTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte("old report"), 0o644))

	require.NoError(t, createReport(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	assert.Error(t, createReport(filepath.Join(path, "child")))
}
