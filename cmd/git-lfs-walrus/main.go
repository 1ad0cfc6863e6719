package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/lgulliver/git-lfs-walrus/internal/filter"
	"github.com/lgulliver/git-lfs-walrus/internal/gitutil"
	"github.com/lgulliver/git-lfs-walrus/internal/maintenance"
	"github.com/lgulliver/git-lfs-walrus/internal/mapping"
	"github.com/lgulliver/git-lfs-walrus/internal/protocol"
	"github.com/lgulliver/git-lfs-walrus/internal/walrus"
	"github.com/lgulliver/git-lfs-walrus/pkg/config"
)

func main() {
	cfg := config.LoadFromEnv()
	cfg.Logging.SetupLogging()

	app := &cli.App{
		Name:  "git-lfs-walrus",
		Usage: "git-lfs filters and custom transfer agent backed by Walrus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "walrus-path",
				Usage:   "path to the walrus CLI binary",
				EnvVars: []string{"WALRUS_CLI_PATH"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "clean",
				Usage:     "git-lfs clean filter: file bytes on stdin, pointer on stdout",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					return withPipeline(c, cfg, func(ctx context.Context, p *filter.Pipeline) error {
						return p.Clean(ctx, os.Stdin, os.Stdout)
					})
				},
			},
			{
				Name:      "smudge",
				Usage:     "git-lfs smudge filter: pointer on stdin, file bytes on stdout",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					return withPipeline(c, cfg, func(ctx context.Context, p *filter.Pipeline) error {
						return p.Smudge(ctx, os.Stdin, os.Stdout)
					})
				},
			},
			{
				Name:  "transfer",
				Usage: "git-lfs custom transfer agent over stdio",
				Action: func(c *cli.Context) error {
					return runTransfer(c, cfg)
				},
			},
			{
				Name:      "check",
				Usage:     "check stored blobs for expiry",
				ArgsUsage: "[files...]",
				Action: func(c *cli.Context) error {
					return withMaintenance(c, cfg, func(ctx context.Context, s *maintenance.Service) error {
						return s.Check(ctx, c.Args().Slice())
					})
				},
			},
			{
				Name:      "refresh",
				Usage:     "re-store expired blobs",
				ArgsUsage: "[files...]",
				Action: func(c *cli.Context) error {
					return withMaintenance(c, cfg, func(ctx context.Context, s *maintenance.Service) error {
						return s.Refresh(ctx, c.Args().Slice())
					})
				},
			},
			{
				Name:      "blob-id",
				Usage:     "show the Walrus blob ID recorded for a file",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("blob-id takes exactly one file", 2)
					}
					return withMaintenance(c, cfg, func(ctx context.Context, s *maintenance.Service) error {
						return s.BlobID(ctx, c.Args().First())
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// buildDeps wires the walrus client and mapping store from config, git
// config overrides included
func buildDeps(c *cli.Context, cfg *config.Config) (*walrus.Client, mapping.Store, error) {
	ctx := c.Context

	if path := c.String("walrus-path"); path != "" {
		cfg.Walrus.BinaryPath = path
	}
	cfg.Walrus.DefaultEpochs = gitutil.ConfigUint(ctx, "lfs.walrus.defaultepochs", cfg.Walrus.DefaultEpochs)
	if t := gitutil.ConfigValue(ctx, "lfs.walrus.mappingstore"); t != "" {
		cfg.Mapping.Type = t
	}

	store, err := mapping.NewFactory(&cfg.Mapping).CreateStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open mapping store: %w", err)
	}

	return walrus.NewClient(&cfg.Walrus), store, nil
}

func withPipeline(c *cli.Context, cfg *config.Config, fn func(context.Context, *filter.Pipeline) error) error {
	blobs, mappings, err := buildDeps(c, cfg)
	if err != nil {
		return err
	}
	defer mappings.Close()

	return fn(c.Context, filter.NewPipeline(blobs, mappings))
}

func withMaintenance(c *cli.Context, cfg *config.Config, fn func(context.Context, *maintenance.Service) error) error {
	blobs, mappings, err := buildDeps(c, cfg)
	if err != nil {
		return err
	}
	defer mappings.Close()

	return fn(c.Context, maintenance.NewService(blobs, mappings, os.Stdout))
}

func runTransfer(c *cli.Context, cfg *config.Config) error {
	blobs, mappings, err := buildDeps(c, cfg)
	if err != nil {
		return err
	}
	defer mappings.Close()

	if err := blobs.VerifyVersion(c.Context); err != nil {
		return err
	}

	downloadDir := cfg.Transfer.DownloadDir
	if downloadDir == "" {
		if downloadDir, err = os.Getwd(); err != nil {
			return fmt.Errorf("failed to resolve download directory: %w", err)
		}
	}

	machine := protocol.NewStateMachine(blobs, mappings, downloadDir)
	return machine.Run(c.Context, os.Stdin, os.Stdout)
}
