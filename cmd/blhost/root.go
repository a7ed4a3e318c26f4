package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Lauszus/pyblhost/pkg/metrics"
	"github.com/Lauszus/pyblhost/pkg/telemetry"
)

// parseNumber accepts either a "0x"-prefixed hex string or a plain
// decimal integer, the CLI sketch's "HEX|DEC" argument convention.
func parseNumber(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 32)
		return uint32(v), err
	}
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

const version = "1.0.0"

// app carries every flag common to all operations and transports: the
// per-wait timeout, ping retry count, verbosity, and the optional
// telemetry/metrics sinks.
type app struct {
	timeoutSeconds float64
	cmdRepeat      int
	verbose        bool

	redisAddr   string
	redisPass   string
	redisDB     int
	metricsAddr string
}

func (a *app) timeout() time.Duration {
	return time.Duration(a.timeoutSeconds * float64(time.Second))
}

// newSink connects to Redis if --redis-addr was given; otherwise it
// returns a nil *Sink, which every Sink method treats as a no-op.
func (a *app) newSink(key string) (*telemetry.Sink, error) {
	if a.redisAddr == "" {
		return nil, nil
	}
	return telemetry.NewSink(a.redisAddr, a.redisPass, a.redisDB, key)
}

// newMetrics builds a metrics.Registry and, if --metrics-addr was given,
// starts a promhttp listener for it. A nil *Registry means metrics are
// disabled throughout the engine and workflow layers.
func (a *app) newMetrics() *metrics.Registry {
	if a.metricsAddr == "" {
		return nil
	}
	promReg := prometheus.NewRegistry()
	reg := metrics.New(promReg)
	serveMetrics(a.metricsAddr, promReg)
	return reg
}

func newRootCommand() *cobra.Command {
	d := loadDefaults()
	a := &app{}

	root := &cobra.Command{
		Use:     "blhost",
		Short:   "Host-side driver for the NXP MCUBOOT/KBOOT bootloader protocol",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().Float64Var(&a.timeoutSeconds, "timeout", d.Timeout, "Timeout for each wait on a target response, in seconds")
	root.PersistentFlags().IntVar(&a.cmdRepeat, "cmd-repeat", d.CmdRepeat, "Number of ping (or, for reset, reset) attempts before giving up on the target")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&a.redisAddr, "redis-addr", d.RedisAddr, "Redis address to mirror progress/results to (optional)")
	root.PersistentFlags().StringVar(&a.redisPass, "redis-pass", "", "Redis password")
	root.PersistentFlags().IntVar(&a.redisDB, "redis-db", 0, "Redis database number")
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", d.MetricsAddr, "Address to serve Prometheus metrics on (optional)")

	root.AddCommand(newCanCommand(a, d))
	root.AddCommand(newSerialCommand(a, d))

	return root
}
