package main

import (
	"fmt"
	"os"

	"github.com/pkg/profile"
	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantle-xyz/kona/host"
	"github.com/mantle-xyz/kona/host/config"
	"github.com/mantle-xyz/kona/host/flags"
)

const Version = "0.1.0"

func main() {
	if err := run(os.Args, host.Main); err != nil {
		log.Crit("Application failed", "err", err)
	}
}

type ConfigAction func(logger log.Logger, cfg *config.Config) error

func run(args []string, action ConfigAction) error {
	app := cli.NewApp()
	app.Name = "kona"
	app.Usage = "Fault proof program host"
	app.Description = "Derives the L2 chain from L1 data and validates a claimed " +
		"L2 output root, serving pre-images to the client program."
	app.Version = Version
	app.Flags = flags.Flags
	app.Action = func(ctx *cli.Context) error {
		logger, err := setupLogging(ctx)
		if err != nil {
			return err
		}
		logger.Info("Starting fault proof program host", "version", Version)

		cfg, err := config.NewConfigFromCLI(logger, ctx)
		if err != nil {
			return err
		}

		switch prof := ctx.String(flags.Profile.Name); prof {
		case "":
		case "cpu":
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		case "mem":
			defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
		default:
			return fmt.Errorf("unknown profile type: %s", prof)
		}
		return action(logger, cfg)
	}
	return app.Run(args)
}
