// Package eigenda retrieves rollup data blobs from an EigenDA proxy.
package eigenda

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
)

var ErrBlobNotFound = errors.New("eigenda blob not found")

// Client fetches blobs from an EigenDA proxy, addressed by the batch header
// hash the disperser confirmed on chain and the index of the blob within that
// batch.
type Client struct {
	log     log.Logger
	baseURL string
	client  *http.Client
}

func NewClient(logger log.Logger, baseURL string) *Client {
	return &Client{
		log:     logger,
		baseURL: baseURL,
		client:  http.DefaultClient,
	}
}

// RetrieveBlob returns the raw blob data. The proxy validates the blob
// against the DA layer before serving it.
func (c *Client) RetrieveBlob(ctx context.Context, batchHeaderHash []byte, blobIndex uint32) ([]byte, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid eigenda proxy endpoint %q: %w", c.baseURL, err)
	}
	base.Path = base.Path + "/get/" + hexutil.Encode(batchHeaderHash)
	query := url.Values{}
	query.Set("blob_index", strconv.FormatUint(uint64(blobIndex), 10))
	base.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eigenda blob request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("batch %s index %d: %w", hexutil.Encode(batchHeaderHash), blobIndex, ErrBlobNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eigenda blob request: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read eigenda blob: %w", err)
	}
	c.log.Debug("Retrieved EigenDA blob", "batch", hexutil.Encode(batchHeaderHash), "index", blobIndex, "size", len(data))
	return data, nil
}
