package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/ortelius/ms-dep-pkg-cud/deppkg"
)

const defaultConfigPath = "config/application.toml"

var rootCmd = &cobra.Command{
	Use:               "deppkg-cli",
	Short:             "Ingest SBOM dependency data into the component database",
	PersistentPreRunE: initApp,
}

var rootFlags = struct {
	configPath string
}{}

var _app app

type app struct {
	DB     *gorm.DB
	Config deppkg.Config
}

func App() app {
	return _app
}

func main() {
	err := run()
	if err != nil {
		fmt.Printf("FATAL: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	err := rootCmd.Execute()
	if err != nil {
		return err
	}
	return nil
}

func initApp(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	config.ApplyEnv(os.LookupEnv)
	_app.Config = config

	var level slog.Level
	if err := level.UnmarshalText([]byte(config.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", config.LogLevel, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	db, err := deppkg.OpenDB(config.DB, level <= slog.LevelDebug)
	if err != nil {
		return err
	}
	_app.DB = db

	return nil
}

// loadConfig reads the toml configuration. A missing default file is not an
// error: the service can be configured through the environment alone.
func loadConfig(cmd *cobra.Command) (deppkg.Config, error) {
	config, err := deppkg.ParseConfigFromFile(rootFlags.configPath)
	if err == nil {
		return config, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		return deppkg.DefaultConfig(), nil
	}
	return config, fmt.Errorf("error reading %q: %w", rootFlags.configPath, err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.configPath, "config", "c", defaultConfigPath, "Path to the toml configuration")
}
