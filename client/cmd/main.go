package main

import (
	"os"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantle-xyz/kona/client"
)

func main() {
	// stdout is reserved for the process exit semantics, log to stderr
	logger := log.NewLogger(log.LogfmtHandlerWithLevel(os.Stderr, log.LevelInfo))
	client.Main(logger)
}
