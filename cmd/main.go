package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	var catalog services.Catalog
	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		if svc, err := services.NewSpotifyService(context.Background(),
			config.Credentials.Spotify.ClientID,
			config.Credentials.Spotify.ClientSecret,
		); err == nil {
			catalog = svc
		} else {
			logger.Warn("spotify catalog unavailable", "err", err)
		}
	}

	generator := services.NewOllamaService(config.Generator.BaseURL, config.Generator.Model)

	runner := NewRunner(RunnerOpts{
		Config:    config,
		Catalog:   catalog,
		Generator: generator,
		Logger:    logger,
	})

	app := &cli.Command{
		Name:     "setlist",
		Usage:    "Assemble playlists from natural language prompts",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize database and run migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.SetupDatabase,
	}
}
