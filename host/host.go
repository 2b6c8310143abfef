package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/mantle-xyz/kona/client"
	"github.com/mantle-xyz/kona/client/claim"
	"github.com/mantle-xyz/kona/host/config"
	"github.com/mantle-xyz/kona/host/eigenda"
	"github.com/mantle-xyz/kona/host/kvstore"
	"github.com/mantle-xyz/kona/host/prefetcher"
	"github.com/mantle-xyz/kona/host/sources"
	"github.com/mantle-xyz/kona/preimage"
)

// Main runs the host, either as a pre-image server serving an external client
// over the inherited file descriptors, or as the full fault proof program.
func Main(logger log.Logger, cfg *config.Config) error {
	if err := cfg.Check(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	ctx := context.Background()
	if cfg.ServerMode {
		preimageChannel := preimage.NewReadWritePair(os.NewFile(client.PClientRFd, "preimage-oracle-read"), os.NewFile(client.PClientWFd, "preimage-oracle-write"))
		hintChannel := preimage.NewReadWritePair(os.NewFile(client.HClientRFd, "preimage-hint-read"), os.NewFile(client.HClientWFd, "preimage-hint-write"))
		return PreimageServer(ctx, logger, cfg, preimageChannel, hintChannel)
	}

	if err := FaultProofProgram(ctx, logger, cfg); errors.Is(err, claim.ErrClaimNotValid) {
		log.Crit("Claim is invalid", "err", err)
	} else if err != nil {
		return err
	} else {
		logger.Info("Claim successfully verified")
	}
	return nil
}

// FaultProofProgram runs the client program in-process or as a separate
// process, serving its pre-image requests from the key-value store and the
// configured sources.
func FaultProofProgram(ctx context.Context, logger log.Logger, cfg *config.Config) error {
	pClientRW, pHostRW, err := preimage.CreateBidirectionalChannel()
	if err != nil {
		return fmt.Errorf("failed to create preimage pipe: %w", err)
	}
	hClientRW, hHostRW, err := preimage.CreateBidirectionalChannel()
	if err != nil {
		return fmt.Errorf("failed to create hints pipe: %w", err)
	}

	// Note: the client errors are picked up directly, the server select only
	// fires on server-side failures.
	serverErr := make(chan error, 1)
	go func() {
		defer pHostRW.Close()
		defer hHostRW.Close()
		serverErr <- PreimageServer(ctx, logger, cfg, pHostRW, hHostRW)
	}()

	var programErr error
	if cfg.ExecCmd != "" {
		programErr = execClientProgram(ctx, logger, cfg, pClientRW, hClientRW)
	} else {
		programErr = client.RunProgram(logger, pClientRW, hClientRW)
		// Unblock the server by closing the client side of the channels.
		pClientRW.Close()
		hClientRW.Close()
	}
	if programErr != nil {
		return programErr
	}
	if err := <-serverErr; err != nil {
		return fmt.Errorf("preimage server failed: %w", err)
	}
	return nil
}

func execClientProgram(ctx context.Context, logger log.Logger, cfg *config.Config, pClientRW preimage.FileChannel, hClientRW preimage.FileChannel) error {
	cmd := exec.CommandContext(ctx, cfg.ExecCmd)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// fds 3 through 6, in the order the client expects them
	cmd.ExtraFiles = []*os.File{
		hClientRW.Reader(),
		hClientRW.Writer(),
		pClientRW.Reader(),
		pClientRW.Writer(),
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start client program: %w", err)
	}
	// The parent's duplicated pipe ends must be closed so EOF propagates when
	// the child exits.
	pClientRW.Close()
	hClientRW.Close()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("client program failed: %w", err)
	}
	logger.Info("Client program completed successfully")
	return nil
}

// PreimageServer serves pre-image and hint requests on the given channels
// until the client closes them.
func PreimageServer(ctx context.Context, logger log.Logger, cfg *config.Config, preimageChannel preimage.FileChannel, hintChannel preimage.FileChannel) error {
	logger.Info("Starting preimage server")
	kv, err := openKVStore(logger, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	var (
		getPreimage func(ctx context.Context, key [32]byte) ([]byte, error)
		hinter      preimage.HintHandler
	)
	if cfg.FetchingEnabled() {
		prefetch, err := makePrefetcher(ctx, logger, kv, cfg)
		if err != nil {
			return fmt.Errorf("failed to create prefetcher: %w", err)
		}
		getPreimage = prefetch.GetPreimage
		hinter = prefetch.Hint
	} else {
		logger.Info("Using offline mode. All required pre-images must be pre-populated.")
		getPreimage = func(_ context.Context, key [32]byte) ([]byte, error) {
			return kv.Get(common.Hash(key))
		}
		hinter = func(hint string) error {
			logger.Debug("Ignoring hint", "hint", hint)
			return nil
		}
	}

	localPreimageSource := kvstore.NewLocalPreimageSource(cfg)
	splitter := kvstore.NewPreimageSourceSplitter(localPreimageSource, globalSource(ctx, getPreimage))

	serverDone := launchOracleServer(logger, splitter.Get, preimageChannel)
	hinterDone := routeHints(logger, hintChannel, hinter)
	select {
	case err := <-serverDone:
		return err
	case err := <-hinterDone:
		return err
	}
}

func openKVStore(logger log.Logger, cfg *config.Config) (kvstore.KV, error) {
	if cfg.DataDir == "" {
		logger.Info("Using in-memory storage")
		return kvstore.NewMemKV(), nil
	}
	logger.Info("Creating disk storage", "datadir", cfg.DataDir)
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating datadir: %w", err)
	}
	return kvstore.NewDiskKV(filepath.Join(cfg.DataDir, "preimages"))
}

func makePrefetcher(ctx context.Context, logger log.Logger, kv kvstore.KV, cfg *config.Config) (*prefetcher.Prefetcher, error) {
	logger.Info("Connecting to L1 node", "l1", cfg.L1URL)
	l1RPC, err := rpc.DialContext(ctx, cfg.L1URL)
	if err != nil {
		return nil, fmt.Errorf("failed to setup L1 RPC: %w", err)
	}
	logger.Info("Connecting to L2 node", "l2", cfg.L2URL)
	l2RPC, err := rpc.DialContext(ctx, cfg.L2URL)
	if err != nil {
		return nil, fmt.Errorf("failed to setup L2 RPC: %w", err)
	}
	l1Client := sources.NewL1Client(logger, l1RPC)
	l1BlobClient := sources.NewBeaconClient(logger, cfg.L1BeaconURL)
	l2Client := sources.NewL2Client(logger, l2RPC)
	daClient := eigenda.NewClient(logger, cfg.EigenDAProxyURL)
	return prefetcher.NewPrefetcher(logger, l1Client, l1BlobClient, daClient, l2Client, cfg.L2Head, kv), nil
}

type preimageGetter func(ctx context.Context, key [32]byte) ([]byte, error)

// globalSource binds the server context into the kvstore.PreimageSource shape.
func globalSource(ctx context.Context, getter preimageGetter) kvstore.PreimageSource {
	return globalSourceFn(func(key common.Hash) ([]byte, error) {
		return getter(ctx, key)
	})
}

type globalSourceFn func(key common.Hash) ([]byte, error)

func (fn globalSourceFn) Get(key common.Hash) ([]byte, error) {
	return fn(key)
}

func routeHints(logger log.Logger, hHostRW io.ReadWriter, hinter preimage.HintHandler) chan error {
	chErr := make(chan error)
	hintReader := preimage.NewHintReader(hHostRW)
	go func() {
		defer close(chErr)
		for {
			if err := hintReader.NextHint(hinter); err != nil {
				if err == io.EOF || errors.Is(err, fs.ErrClosed) {
					logger.Debug("Closing pre-image hint handler")
					return
				}
				logger.Error("Pre-image hint router error", "err", err)
				chErr <- err
				return
			}
		}
	}()
	return chErr
}

func launchOracleServer(logger log.Logger, getter preimage.PreimageGetter, rw io.ReadWriter) chan error {
	chErr := make(chan error)
	server := preimage.NewOracleServer(rw)
	go func() {
		defer close(chErr)
		for {
			if err := server.NextPreimageRequest(getter); err != nil {
				if err == io.EOF || errors.Is(err, fs.ErrClosed) {
					logger.Debug("Closing pre-image server")
					return
				}
				logger.Error("Pre-image server error", "err", err)
				chErr <- err
				return
			}
		}
	}()
	return chErr
}
