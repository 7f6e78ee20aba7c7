package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/strawbean/internal/profile"
	"github.com/hrygo/strawbean/server"
	"github.com/hrygo/strawbean/store"
	"github.com/hrygo/strawbean/store/db"
)

// version is overridden at build time with -ldflags.
var version = "0.1.0-dev"

var (
	rootCmd = &cobra.Command{
		Use:   "strawbean",
		Short: `A chat-style reminder engine with natural language directives.`,
		Run: func(cmd *cobra.Command, _ []string) {
			runServe(cmd.Context())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder dispatch loop",
		Run: func(cmd *cobra.Command, _ []string) {
			runServe(cmd.Context())
		},
	}
)

// loadProfile builds a validated profile from flags, STRAWBEAN_* variables
// and defaults.
func loadProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Addr:    viper.GetString("addr"),
		Port:    viper.GetInt("port"),
		Data:    viper.GetString("data"),
		Driver:  viper.GetString("driver"),
		DSN:     viper.GetString("dsn"),
		Version: version,
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create db driver: %w", err)
	}
	s := store.New(driver, p)
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

// newLogger logs text at debug level in dev and demo, JSON at info in prod.
func newLogger(p *profile.Profile) *slog.Logger {
	if p.IsDev() {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func runServe(ctx context.Context) {
	p, err := loadProfile()
	if err != nil {
		slog.Error("failed to validate profile", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(p))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := openStore(ctx, p)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	srv, err := server.NewServer(ctx, p, s)
	if err != nil {
		s.Close()
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	c := make(chan os.Signal, 1)
	// Trigger graceful shutdown on SIGINT or SIGTERM.
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	if err := srv.Start(ctx); err != nil {
		slog.Error("failed to start server", "error", err)
		srv.Shutdown(ctx)
		os.Exit(1)
	}
	printGreetings(p)

	<-c
	srv.Shutdown(context.WithoutCancel(ctx))
}

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)

	rootCmd.PersistentFlags().String("mode", "demo", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver: sqlite, postgres or memory")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("strawbean")
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, newExecCmd(), newTokenCmd())
	rootCmd.Version = version
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("strawbean %s started successfully!\n", p.Version)
	if p.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if p.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", p.DSN)
		}
	}
	if len(p.Addr) == 0 {
		fmt.Printf("Listening on port %d, prefix %q, timezone %s\n", p.Port, p.Prefix, p.Timezone)
	} else {
		fmt.Printf("Listening on %s:%d, prefix %q, timezone %s\n", p.Addr, p.Port, p.Prefix, p.Timezone)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
