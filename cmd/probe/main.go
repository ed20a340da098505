package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/modbus-bridge/bridge"
	"github.com/wippyai/modbus-bridge/channel"
	"github.com/wippyai/modbus-bridge/config"
)

type target struct {
	addr    string
	timeout time.Duration
	queue   int
	unit    uint
}

func main() {
	var (
		addr        = flag.String("addr", "127.0.0.1:502", "Server socket address (IP:port)")
		unit        = flag.Uint("unit", 1, "Unit identifier (0-255)")
		op          = flag.String("op", "", "Operation: "+operationNames())
		start       = flag.String("start", "0", "First address")
		count       = flag.String("count", "1", "Number of items to read")
		index       = flag.String("index", "0", "Address for single writes")
		value       = flag.String("value", "0", "Value for single writes")
		values      = flag.String("values", "", "Comma-separated values for multiple writes")
		timeout     = flag.Duration("timeout", time.Second, "Response timeout")
		queue       = flag.Int("queue", 16, "Maximum queued requests")
		metricsAddr = flag.String("metrics", "", "Serve Prometheus metrics on this address (e.g. :9090)")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *op == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: probe -addr <ip:port> -op <operation> [-unit n] [-start n -count n] [-index n -value v] [-values a,b,...]")
		fmt.Fprintln(os.Stderr, "       probe -addr <ip:port> -i  (interactive mode)")
		fmt.Fprintln(os.Stderr, "Operations: "+operationNames())
		os.Exit(1)
	}
	if *unit > 0xFF {
		fmt.Fprintf(os.Stderr, "Error: unit %d out of range\n", *unit)
		os.Exit(1)
	}

	cfg := config.Load()
	log := config.NewLogger(os.Stderr, cfg)
	defer log.Sync()

	reg := prometheus.NewRegistry()
	bridge.Configure(cfg, log, channel.WithMetrics(channel.NewMetrics(reg)))
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, reg, log)
	}

	t := target{addr: *addr, unit: *unit, timeout: *timeout, queue: *queue}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(t); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	flags := map[string]string{
		"start":  *start,
		"count":  *count,
		"index":  *index,
		"value":  *value,
		"values": *values,
	}
	out, err := runOnce(t, *op, flags)
	if out != "" {
		fmt.Println(out)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server stopped", zap.Error(err))
	}
}

// connection is a runtime and channel opened for one probe session.
type connection struct {
	session bridge.Session
}

func open(t target) (*connection, error) {
	rt := bridge.CreateMultithreadedRuntime()
	if rt == 0 {
		return nil, errors.New("create runtime failed")
	}
	ch := bridge.CreateTCPClient(rt, t.addr, t.queue)
	if ch == 0 {
		bridge.DestroyRuntime(rt)
		return nil, fmt.Errorf("invalid address %q or queue depth %d", t.addr, t.queue)
	}
	s := bridge.BuildSession(rt, ch, uint8(t.unit), uint32(t.timeout/time.Millisecond))
	return &connection{session: s}, nil
}

func (c *connection) close() {
	bridge.DestroyTCPClient(c.session.Channel)
	bridge.DestroyRuntime(c.session.Runtime)
}

// call runs op with raw text arguments and returns its formatted output.
func (c *connection) call(op operation, raw []string) (string, error) {
	args, err := parseArgs(op, raw)
	if err != nil {
		return "", err
	}
	out, res := op.run(c.session, args)
	if !res.IsOk() {
		return "", fmt.Errorf("%s: %s", op.name, res)
	}
	if out == "" {
		out = res.String()
	}
	return out, nil
}

func runOnce(t target, opName string, flags map[string]string) (string, error) {
	op, ok := findOperation(opName)
	if !ok {
		return "", fmt.Errorf("unknown operation %q (want one of %s)", opName, operationNames())
	}

	conn, err := open(t)
	if err != nil {
		return "", err
	}
	defer conn.close()

	raw := make([]string, len(op.params))
	for i, p := range op.params {
		raw[i] = flags[p.name]
	}
	return conn.call(op, raw)
}
