package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notevault/internal"
	"github.com/starford/notevault/internal/mcpserver"
	pkgconfig "github.com/starford/notevault/pkg/config"
)

func run(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if cmd.IsSet("log-level") {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "notevault",
		Usage:   "MCP server for sandboxed, section-aware editing of Markdown note vaults",
		Version: mcpserver.Version,
		Action:  run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Override app.log_level (debug, info, warn, error)",
				Sources: cli.EnvVars("NOTEVAULT_LOG_LEVEL"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
