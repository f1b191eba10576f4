package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/feudbox/internal/assets"
	"github.com/Seednode/feudbox/internal/room"
	"github.com/Seednode/feudbox/internal/server"
)

type Config struct {
	bind          string
	corsOrigins   []string
	gamesDir      string
	idleTimeout   time.Duration
	maxLogoSize   int64
	maxPayload    int64
	metrics       bool
	pingInterval  time.Duration
	port          int
	prefix        string
	profile       bool
	publicDir     string
	sweepInterval time.Duration
	tlsCert       string
	tlsKey        string
	verbose       bool
	version       bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	for name, d := range map[string]time.Duration{
		"idle-timeout":   c.idleTimeout,
		"ping-interval":  c.pingInterval,
		"sweep-interval": c.sweepInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid --%s (must be positive): %s", name, d)
		}
	}
	if c.maxPayload <= 0 {
		return fmt.Errorf("invalid --max-payload (must be positive): %d", c.maxPayload)
	}
	if c.maxLogoSize <= 0 || c.maxLogoSize > c.maxPayload {
		return fmt.Errorf("invalid --max-logo-size (must be between 1 and --max-payload): %d", c.maxLogoSize)
	}
	if c.gamesDir == "" || c.publicDir == "" {
		return errors.New("--games-dir and --public-dir must not be empty")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("FEUDBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "feudbox",
		Short:         "Realtime rooms for a survey-says party game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: FEUDBOX_BIND)")
	fs.StringSliceVar(&cfg.corsOrigins, "cors-origin", nil, "origins allowed to reach the api from another host (env: FEUDBOX_CORS_ORIGIN)")
	fs.StringVar(&cfg.gamesDir, "games-dir", "games", "directory holding game files, one subdirectory per language (env: FEUDBOX_GAMES_DIR)")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", room.DefaultIdleTimeout, "time before idle rooms are closed (env: FEUDBOX_IDLE_TIMEOUT)")
	fs.Int64Var(&cfg.maxLogoSize, "max-logo-size", assets.DefaultMaxLogoSize, "largest accepted logo upload, in bytes (env: FEUDBOX_MAX_LOGO_SIZE)")
	fs.Int64Var(&cfg.maxPayload, "max-payload", server.DefaultMaxPayload, "largest accepted websocket frame, in bytes (env: FEUDBOX_MAX_PAYLOAD)")
	fs.BoolVar(&cfg.metrics, "metrics", false, "expose prometheus metrics at /metrics (env: FEUDBOX_METRICS)")
	fs.DurationVar(&cfg.pingInterval, "ping-interval", room.DefaultPingInterval, "time between latency pings to buzzers (env: FEUDBOX_PING_INTERVAL)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: FEUDBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: FEUDBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: FEUDBOX_PROFILE)")
	fs.StringVar(&cfg.publicDir, "public-dir", "public", "directory uploaded room assets are written to (env: FEUDBOX_PUBLIC_DIR)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", room.DefaultSweepInterval, "time between idle room sweeps (env: FEUDBOX_SWEEP_INTERVAL)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: FEUDBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: FEUDBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: FEUDBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: FEUDBOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, v.GetString(f.Name))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("feudbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
