package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantle-xyz/kona/eth"
)

const (
	genesisMethod      = "eth/v1/beacon/genesis"
	specMethod         = "eth/v1/config/spec"
	blobSidecarsMethod = "eth/v1/beacon/blob_sidecars"
)

// BeaconClient fetches blob sidecars from an L1 beacon node over its standard
// HTTP API. The genesis time and slot interval are fetched once and cached so
// block timestamps can be translated to slots.
type BeaconClient struct {
	log     log.Logger
	baseURL string
	client  *http.Client

	initMu         sync.Mutex
	initialized    bool
	genesisTime    uint64
	secondsPerSlot uint64
}

func NewBeaconClient(logger log.Logger, baseURL string) *BeaconClient {
	return &BeaconClient{
		log:     logger,
		baseURL: baseURL,
		client:  http.DefaultClient,
	}
}

type beaconGenesisResponse struct {
	Data struct {
		GenesisTime string `json:"genesis_time"`
	} `json:"data"`
}

type beaconSpecResponse struct {
	Data struct {
		SecondsPerSlot string `json:"SECONDS_PER_SLOT"`
	} `json:"data"`
}

type blobSidecarsResponse struct {
	Data []*eth.BlobSidecar `json:"data"`
}

func (c *BeaconClient) request(ctx context.Context, dest any, method string, query url.Values) error {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid beacon endpoint %q: %w", c.baseURL, err)
	}
	base.Path = path.Join(base.Path, method)
	base.RawQuery = query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("beacon request %s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("beacon request %s: unexpected status %d", method, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func (c *BeaconClient) init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.initialized {
		return nil
	}
	var genesis beaconGenesisResponse
	if err := c.request(ctx, &genesis, genesisMethod, nil); err != nil {
		return err
	}
	var spec beaconSpecResponse
	if err := c.request(ctx, &spec, specMethod, nil); err != nil {
		return err
	}
	genesisTime, err := strconv.ParseUint(genesis.Data.GenesisTime, 10, 64)
	if err != nil {
		return fmt.Errorf("parse beacon genesis time: %w", err)
	}
	secondsPerSlot, err := strconv.ParseUint(spec.Data.SecondsPerSlot, 10, 64)
	if err != nil {
		return fmt.Errorf("parse beacon seconds per slot: %w", err)
	}
	if secondsPerSlot == 0 {
		return fmt.Errorf("got bad value for seconds per slot: %v", secondsPerSlot)
	}
	c.genesisTime = genesisTime
	c.secondsPerSlot = secondsPerSlot
	c.initialized = true
	c.log.Debug("Beacon client initialized", "genesis_time", genesisTime, "seconds_per_slot", secondsPerSlot)
	return nil
}

// GetBlobSidecars fetches the blob sidecars that were confirmed in the L1
// block with the given ref, filtered to the given indexed hashes.
func (c *BeaconClient) GetBlobSidecars(ctx context.Context, ref eth.L1BlockRef, hashes []eth.IndexedBlobHash) ([]*eth.BlobSidecar, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	if err := c.init(ctx); err != nil {
		return nil, fmt.Errorf("initialize beacon client: %w", err)
	}
	if ref.Time < c.genesisTime {
		return nil, fmt.Errorf("block timestamp %d is before beacon genesis %d", ref.Time, c.genesisTime)
	}
	slot := (ref.Time - c.genesisTime) / c.secondsPerSlot

	query := url.Values{}
	for _, h := range hashes {
		query.Add("indices", strconv.FormatUint(h.Index, 10))
	}
	var resp blobSidecarsResponse
	if err := c.request(ctx, &resp, path.Join(blobSidecarsMethod, strconv.FormatUint(slot, 10)), query); err != nil {
		return nil, fmt.Errorf("fetch blob sidecars of slot %d: %w", slot, err)
	}

	sidecars := make([]*eth.BlobSidecar, len(hashes))
	for i, h := range hashes {
		var matched *eth.BlobSidecar
		for _, sidecar := range resp.Data {
			if uint64(sidecar.Index) == h.Index {
				matched = sidecar
				break
			}
		}
		if matched == nil {
			return nil, fmt.Errorf("blob sidecar with index %d not found in slot %d", h.Index, slot)
		}
		sidecars[i] = matched
	}
	return sidecars, nil
}
