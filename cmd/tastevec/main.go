package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/tastevec/internal/profile"
	"github.com/hrygo/tastevec/server"
	"github.com/hrygo/tastevec/store"
	"github.com/hrygo/tastevec/store/db"
)

const version = "0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:   "tastevec",
		Short: "Incremental taste-vector content recommendations.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and background workers.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	embedCmd = &cobra.Command{
		Use:   "embed",
		Short: "Embed every content item that has no embedding yet, then exit.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEmbed(cmd.Context())
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver, sqlite or postgres")
	rootCmd.PersistentFlags().String("dsn", "", "database source name")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("tastevec")
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, embedCmd)
}

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

func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	storeInstance := store.New(dbDriver, p)
	if err := storeInstance.Migrate(ctx); err != nil {
		_ = storeInstance.Close()
		return nil, errors.Wrap(err, "failed to migrate")
	}
	return storeInstance, nil
}

func runServe(ctx context.Context) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	storeInstance, err := openStore(ctx, p)
	if err != nil {
		return err
	}
	defer storeInstance.Close()

	s, err := server.NewServer(ctx, p, storeInstance)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}
	printGreetings(p)
	return s.Run(ctx)
}

func runEmbed(ctx context.Context) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	if !p.IsAIEnabled() {
		return errors.New("embedding requires TASTEVEC_AI_ENABLED=true and a provider")
	}
	storeInstance, err := openStore(ctx, p)
	if err != nil {
		return err
	}
	defer storeInstance.Close()

	s, err := server.NewServer(ctx, p, storeInstance)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}
	runner := s.EmbeddingRunner()
	if runner == nil {
		return errors.New("embedding provider unavailable")
	}
	processed := runner.RunOnce(ctx)
	slog.Info("embedding pass finished", "processed", processed)
	return nil
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("tastevec %s started successfully!\n", p.Version)
	fmt.Printf("Data directory: %s\n", p.Data)
	fmt.Printf("Database driver: %s\n", p.Driver)
	fmt.Printf("Mode: %s\n", p.Mode)
	if p.Addr == "" {
		fmt.Printf("Server running on port %d\n", p.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", p.Addr, p.Port)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
