package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const examples = `Server:
    gospeed --socket my_socket --ipv4-port 2222 --ipv6-port 5000 --interval 2

Client:
    gospeed --client --proto local --socket my_socket --size 100
    gospeed --client --proto ipv4 --address localhost --port 2222 --size 50
    gospeed --client --proto ipv4 --address 127.0.0.1 --port 2222 --size 12
    gospeed --client --proto ipv6 --address ::1 --interface lo --port 5000 --size 37

Every flag can also be set in .env or the environment, see --help.
`

func main() {
	app, err := loadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}

	logger, lerr := newLogger(app.logLevel, app.logFormat)
	if lerr != nil {
		logger = zap.NewExample()
		logger.Warn("main: bad logging configuration, using defaults", zap.Error(lerr))
	}
	diag := newDiagnostics(logger)

	if err != nil {
		diag.exit(diag.fail(os.Getpid(), originGeneral, err))
		return
	}

	if app.showExamples {
		fmt.Print(examples)
		os.Exit(0)
	}

	if !app.isClient {
		logger.Info("In server mode... use '--client' to switch to client mode...",
			zap.String("socket", app.socketPath), zap.Int("ipv4Port", app.ipv4Port), zap.Int("ipv6Port", app.ipv6Port),
			zap.Int("interval", app.reportInterval), zap.String("report", app.reportFile))
		diag.exit(openServer(app, logger, diag))
		return
	}

	logger.Info("In client mode", zap.String("proto", app.proto))
	diag.exit(openClient(app, logger, diag))
}

// loadConfig reads .env (if present) into the environment, uses the
// environment as flag defaults and parses args. The returned config is never
// nil, so logging can be set up even when err != nil.
func loadConfig(args []string) (*config, error) {
	app := &config{defaultPort: ":9100"}

	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return app, fmt.Errorf("error loading .env file: %w", err)
	}

	app.logLevel = envString("LOG_LEVEL", "info")
	app.logFormat = envString("LOG_FORMAT", "console")

	ipv4Port, err := envInt("IPV4_PORT", 0)
	if err != nil {
		return app, err
	}
	ipv6Port, err := envInt("IPV6_PORT", 0)
	if err != nil {
		return app, err
	}
	port, err := envInt("DEST_PORT", 0)
	if err != nil {
		return app, err
	}
	size, err := envInt("BUFFER_SIZE", 0)
	if err != nil {
		return app, err
	}

	var interval string

	flags := pflag.NewFlagSet("gospeed", pflag.ContinueOnError)
	flags.BoolVar(&app.isClient, "client", false, "run in client mode")
	flags.BoolVarP(&app.showExamples, "examples", "e", false, "show usage examples")
	flags.StringVar(&app.socketPath, "socket", os.Getenv("SOCKET_PATH"), "local socket file name")
	flags.IntVar(&app.ipv4Port, "ipv4-port", ipv4Port, "server TCP/IPv4 port")
	flags.IntVar(&app.ipv6Port, "ipv6-port", ipv6Port, "server TCP/IPv6 port")
	flags.StringVar(&interval, "interval", os.Getenv("REPORT_INTERVAL"), "report interval in seconds (default 1)")
	flags.StringVar(&app.reportFile, "report", envString("REPORT_FILE", "log.txt"), "report file, overwritten every interval")
	flags.StringVar(&app.metricsAddr, "metrics", os.Getenv("METRICS_ADDR"), "serve Prometheus metrics on `host[:port]`")
	flags.StringVar(&app.proto, "proto", envString("PROTOCOL", protoIPv4.String()), "client protocol: local, ipv4 or ipv6")
	flags.StringVar(&app.address, "address", os.Getenv("DEST_IP"), "server IPv4 host or IPv6 address")
	flags.IntVar(&app.port, "port", port, "server port")
	flags.StringVar(&app.iface, "interface", os.Getenv("INTERFACE"), "IPv6 interface")
	flags.IntVar(&app.bufferSize, "size", size, fmt.Sprintf("client buffer size, at most %d", maxBuffSize))

	if err := flags.Parse(args); err != nil {
		return app, err
	}

	app.reportInterval = parseReportInterval(interval)

	if err := validateConfig(app); err != nil {
		return app, err
	}

	return app, nil
}

func validateConfig(app *config) error {
	if app.showExamples {
		return nil
	}

	if app.isClient {
		p, err := parseProtocol(app.proto)
		if err != nil {
			return err
		}
		if p != protoLocal {
			if app.address == "" {
				return fmt.Errorf("missing server address for %s", p)
			}
			// a client has to name the server port, 0 is not a wildcard here
			if app.port == 0 {
				return fmt.Errorf("missing server port for %s", p)
			}
			if err := validatePort("port", app.port); err != nil {
				return err
			}
		}
		return nil
	}

	if app.socketPath == "" {
		return errors.New("missing local socket file name")
	}
	if err := validatePort("ipv4-port", app.ipv4Port); err != nil {
		return err
	}

	return validatePort("ipv6-port", app.ipv6Port)
}

func validatePort(name string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("bad %s: %d", name, port)
	}
	return nil
}

// parseReportInterval falls back to one second on anything but a positive
// integer.
func parseReportInterval(s string) int {
	interval, err := strconv.Atoi(s)
	if err != nil || interval <= 0 {
		return 1
	}
	return interval
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("bad %s: %q: %w", key, v, err)
	}

	return n, nil
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Sampling = nil
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch format {
	case "json":
	case "console", "":
		cfg.Encoding = "console"
	default:
		return nil, fmt.Errorf("bad LOG_FORMAT: %q", format)
	}

	return cfg.Build()
}
