package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gustycube/quad9-domains/internal/config"
)

const version = "1.0.0"

// legacyShort maps the two-letter short flags of earlier releases onto
// their long forms; pflag only supports single-letter shorthands.
var legacyShort = map[string]string{
	"-qc": "--q-config",
	"-cc": "--cti-config",
}

func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, a := range args {
		if a == "--" {
			return append(out, args[i:]...)
		}
		name, value, hasValue := strings.Cut(a, "=")
		if long, ok := legacyShort[name]; ok {
			if hasValue {
				a = long + "=" + value
			} else {
				a = long
			}
		}
		out = append(out, a)
	}
	return out
}

type flagValues struct {
	configFile        string
	qConfig           string
	ctiConfig         string
	logFile           string
	logLevel          string
	outputDir         string
	localPort         int
	parallel          int
	knownHosts        string
	skipFailedQueries bool
	redisAddr         string
	pushgateway       string
	otelEndpoint      string
	otelInsecure      bool
	otelService       string
}

func newRootCmd(a *app) *cobra.Command {
	var fv flagValues

	cmd := &cobra.Command{
		Use:   "quad9domains [flags] st et",
		Short: "Fetch malicious domains from CTI and Q for a specified period of time",
		Long: `Fetch malicious domains observed between st and et (DD/MM/YYYY) from the
threat-intel database and every Q server listed in the endpoints config, and
write the deduplicated set to quad9_domains_<st>_<et>.txt.`,
		Example: `  quad9domains 01/01/2023 08/01/2023
  quad9domains -qc servers.json -cc cti.yaml 01/01/2023 08/01/2023
  quad9domains --parallel 4 --local-port 0 01/01/2023 08/01/2023`,
		Version:       version,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, fv)
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), cfg, args[0], args[1])
		},
	}

	f := cmd.Flags()
	f.StringVar(&fv.configFile, "config", "", "path to runtime config file (YAML or JSON)")
	f.StringVar(&fv.qConfig, "q-config", config.DefaultEndpointsFile, "path to Q configuration file (-qc)")
	f.StringVar(&fv.ctiConfig, "cti-config", config.DefaultCTIFile, "path to CTI configuration file (-cc)")
	f.StringVar(&fv.logFile, "log-file", config.DefaultLogFile, "log file, in addition to the console")
	f.StringVar(&fv.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.StringVar(&fv.outputDir, "output-dir", "", "directory for the domains file")
	f.IntVar(&fv.localPort, "local-port", config.MongoPort, "local port for the SSH tunnel (0 = ephemeral)")
	f.IntVar(&fv.parallel, "parallel", 1, "Q servers fetched concurrently (needs --local-port 0 when > 1)")
	f.StringVar(&fv.knownHosts, "known-hosts", "", "known_hosts file for SSH host key checks (empty = no check)")
	f.BoolVar(&fv.skipFailedQueries, "skip-failed-queries", false, "treat a failed Q query like an unreachable server")
	f.StringVar(&fv.redisAddr, "redis-addr", "", "Redis address to hold the domain union of this run")
	f.StringVar(&fv.pushgateway, "pushgateway", "", "Prometheus Pushgateway URL")
	f.StringVar(&fv.otelEndpoint, "otel-endpoint", "", "OTLP HTTP endpoint (host:port)")
	f.BoolVar(&fv.otelInsecure, "otel-insecure", true, "OTLP insecure (no TLS)")
	f.StringVar(&fv.otelService, "otel-service", "quad9-domains", "service.name reported on spans")
	return cmd
}

// buildConfig layers defaults, the optional config file, the environment and
// explicitly set flags, in that order of precedence.
func buildConfig(cmd *cobra.Command, fv flagValues) (*config.Config, error) {
	var cfg *config.Config
	if fv.configFile != "" {
		c, err := config.LoadFromFile(fv.configFile)
		if err != nil {
			return nil, fmt.Errorf("load config file %s: %w", fv.configFile, err)
		}
		cfg = c
	} else {
		cfg = config.Default()
	}
	cfg.LoadFromEnv()

	changed := cmd.Flags().Changed
	flags := make(map[string]interface{})
	if changed("q-config") {
		flags["q_config"] = fv.qConfig
	}
	if changed("cti-config") {
		flags["cti_config"] = fv.ctiConfig
	}
	if changed("log-file") {
		flags["log_file"] = fv.logFile
	}
	if changed("log-level") {
		flags["log_level"] = fv.logLevel
	}
	if changed("output-dir") {
		flags["output_dir"] = fv.outputDir
	}
	if changed("local-port") {
		flags["local_port"] = fv.localPort
	}
	if changed("parallel") {
		flags["parallel"] = fv.parallel
	}
	if changed("known-hosts") {
		flags["known_hosts"] = fv.knownHosts
	}
	if changed("skip-failed-queries") {
		flags["skip_failed_queries"] = fv.skipFailedQueries
	}
	if changed("redis-addr") {
		flags["redis_addr"] = fv.redisAddr
	}
	if changed("pushgateway") {
		flags["pushgateway"] = fv.pushgateway
	}
	if changed("otel-endpoint") {
		flags["otel_endpoint"] = fv.otelEndpoint
	}
	if changed("otel-insecure") {
		flags["otel_insecure"] = fv.otelInsecure
	}
	if changed("otel-service") {
		flags["otel_service"] = fv.otelService
	}
	cfg.MergeWithFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Execute runs the command line and reports whether the process should exit
// non-zero.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return execute(ctx, newApp(), os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(a)
	cmd.SetArgs(normalizeArgs(args))
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	var le *loggedError
	if err != nil && !errors.As(err, &le) {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return err
}
