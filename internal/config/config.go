package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DoyleJ11/liars-dice-backend/internal/engine"
	"github.com/DoyleJ11/liars-dice-backend/internal/events"
	"github.com/DoyleJ11/liars-dice-backend/internal/gateway"
	"github.com/DoyleJ11/liars-dice-backend/internal/room"
	"github.com/DoyleJ11/liars-dice-backend/internal/ws"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "LIARSDICE"
	MaxDice   = 10
)

type Config struct {
	Bind           string
	Port           int
	StartingDice   int
	RevealDelay    time.Duration
	ResetDelay     time.Duration
	OutboxSize     int
	ActionRate     float64
	ActionBurst    int
	NATSURL        string
	NATSSubject    string
	LogLevel       string
	Dev            bool
	AllowedOrigins []string
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.StartingDice < 1 || c.StartingDice > MaxDice {
		return fmt.Errorf("invalid starting dice (must be between 1-%d inclusive): %d", MaxDice, c.StartingDice)
	}
	if c.RevealDelay < 0 || c.ResetDelay < 0 {
		return errors.New("delays must not be negative")
	}
	if c.OutboxSize < 1 {
		return fmt.Errorf("invalid outbox size: %d", c.OutboxSize)
	}
	if c.ActionRate <= 0 || c.ActionBurst < 1 {
		return errors.New("action rate and burst must be positive")
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// LoadDotEnv reads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// NewCommand builds the root command. Flags fall back to LIARSDICE_* env vars
// (and PORT for the port), then to defaults. run gets the validated config.
func NewCommand(version string, run func(ctx context.Context, cfg Config) error) *cobra.Command {
	cfg := &Config{}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "liarsdice",
		Short:   "Liar's Dice room server.",
		Args:    cobra.ExactArgs(0),
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), *cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: LIARSDICE_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: PORT or LIARSDICE_PORT)")
	fs.IntVar(&cfg.StartingDice, "starting-dice", engine.DefaultStartingDice, "dice each player starts a match with (env: LIARSDICE_STARTING_DICE)")
	fs.DurationVar(&cfg.RevealDelay, "reveal-delay", room.DefaultRevealDelay, "time hands stay revealed before the next round (env: LIARSDICE_REVEAL_DELAY)")
	fs.DurationVar(&cfg.ResetDelay, "reset-delay", room.DefaultResetDelay, "time before a finished match returns to the lobby (env: LIARSDICE_RESET_DELAY)")
	fs.IntVar(&cfg.OutboxSize, "outbox-size", gateway.DefaultOutboxSize, "messages buffered per connection before it is dropped (env: LIARSDICE_OUTBOX_SIZE)")
	fs.Float64Var(&cfg.ActionRate, "action-rate", float64(ws.DefaultActionRate), "messages per second allowed per connection (env: LIARSDICE_ACTION_RATE)")
	fs.IntVar(&cfg.ActionBurst, "action-burst", ws.DefaultActionBurst, "burst of messages allowed per connection (env: LIARSDICE_ACTION_BURST)")
	fs.StringVar(&cfg.NATSURL, "nats-url", "", "publish room events to this NATS server; empty disables (env: LIARSDICE_NATS_URL)")
	fs.StringVar(&cfg.NATSSubject, "nats-subject", events.DefaultSubject, "subject prefix for room events (env: LIARSDICE_NATS_SUBJECT)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "debug, info, warn or error (env: LIARSDICE_LOG_LEVEL)")
	fs.BoolVar(&cfg.Dev, "dev", false, "human-readable logs (env: LIARSDICE_DEV)")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", []string{"http://localhost:5173"}, "origins allowed for CORS and websockets (env: LIARSDICE_ALLOWED_ORIGINS)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		if f.Name == "port" {
			_ = v.BindEnv(f.Name, EnvPrefix+"_PORT", "PORT")
		} else {
			_ = v.BindEnv(f.Name)
		}
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, envValue(v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("liarsdice {{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func envValue(val any) string {
	if list, ok := val.([]string); ok {
		return strings.Join(list, ",")
	}
	return fmt.Sprintf("%v", val)
}
