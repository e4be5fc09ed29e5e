package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"batch_transfer/internal/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	flagConfig = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to config.yml (default: $CONFIG_PATH or config/config.yml)",
	}
	flagRPC = &cli.StringFlag{
		Name:    "rpc",
		Usage:   "wallet provider RPC URL, overrides the config file",
		EnvVars: []string{"SWEEPER_RPC_URL"},
	}
	flagLogLevel = &cli.StringFlag{
		Name:  "log-level",
		Usage: "debug, info, warn or error",
	}
	flagRecipient = &cli.StringFlag{
		Name:     "to",
		Usage:    "recipient address (0x + 40 hex digits)",
		Required: true,
	}
	flagYes = &cli.BoolFlag{
		Name:  "yes",
		Usage: "confirm individual transfers without prompting",
	}
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "sweeper",
		Usage: "moves every ERC20 balance of the connected wallet in one atomic batch",
		Flags: []cli.Flag{flagConfig, flagRPC, flagLogLevel},
		Commands: []*cli.Command{
			networksCommand,
			scanCommand,
			addTokenCommand,
			supportCommand,
			transferCommand,
			traditionalCommand,
			testTransferCommand,
			historyCommand,
			serveCommand,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := app.RunContext(ctx, os.Args)
	stop()
	logger.Sync()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "[Error] %s\n", err.Error())
		os.Exit(1)
	}
}
