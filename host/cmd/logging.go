package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantle-xyz/kona/host/flags"
)

func setupLogging(ctx *cli.Context) (log.Logger, error) {
	var lvl slog.Level
	switch lvlStr := ctx.String(flags.LogLevel.Name); lvlStr {
	case "trace":
		lvl = log.LevelTrace
	case "debug":
		lvl = log.LevelDebug
	case "info":
		lvl = log.LevelInfo
	case "warn":
		lvl = log.LevelWarn
	case "error":
		lvl = log.LevelError
	case "crit":
		lvl = log.LevelCrit
	default:
		return nil, fmt.Errorf("invalid log level: %s", lvlStr)
	}
	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))

	var handler slog.Handler
	switch format := ctx.String(flags.LogFormat.Name); format {
	case "auto":
		if isTerminal {
			handler = log.NewTerminalHandlerWithLevel(os.Stdout, lvl, true)
		} else {
			handler = log.LogfmtHandlerWithLevel(os.Stdout, lvl)
		}
	case "terminal":
		handler = log.NewTerminalHandlerWithLevel(os.Stdout, lvl, isTerminal)
	case "logfmt":
		handler = log.LogfmtHandlerWithLevel(os.Stdout, lvl)
	case "json":
		handler = log.JSONHandlerWithLevel(os.Stdout, lvl)
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
	return log.NewLogger(handler), nil
}
