package sources

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/trie"
)

// L1Client fetches L1 chain data over RPC. Results that carry a block hash are
// verified against the requested hash so an untrusted endpoint cannot serve
// data for the wrong block.
type L1Client struct {
	log log.Logger
	rpc *rpc.Client
	eth *ethclient.Client
}

func NewL1Client(logger log.Logger, rpcClient *rpc.Client) *L1Client {
	return &L1Client{
		log: logger,
		rpc: rpcClient,
		eth: ethclient.NewClient(rpcClient),
	}
}

func (c *L1Client) HeaderByHash(ctx context.Context, blockHash common.Hash) (*types.Header, error) {
	header, err := c.eth.HeaderByHash(ctx, blockHash)
	if err != nil {
		return nil, fmt.Errorf("fetch L1 header %s: %w", blockHash, err)
	}
	if actual := header.Hash(); actual != blockHash {
		return nil, fmt.Errorf("retrieved L1 header %s does not match requested hash %s", actual, blockHash)
	}
	return header, nil
}

func (c *L1Client) BlockByHash(ctx context.Context, blockHash common.Hash) (*types.Block, error) {
	block, err := c.eth.BlockByHash(ctx, blockHash)
	if err != nil {
		return nil, fmt.Errorf("fetch L1 block %s: %w", blockHash, err)
	}
	if actual := block.Hash(); actual != blockHash {
		return nil, fmt.Errorf("retrieved L1 block %s does not match requested hash %s", actual, blockHash)
	}
	return block, nil
}

// FetchReceipts returns the receipts of all transactions in the block,
// verified against the receipt root in the block header.
func (c *L1Client) FetchReceipts(ctx context.Context, blockHash common.Hash) (types.Receipts, error) {
	block, err := c.BlockByHash(ctx, blockHash)
	if err != nil {
		return nil, err
	}
	txs := block.Transactions()
	receipts := make(types.Receipts, len(txs))
	batch := make([]rpc.BatchElem, len(txs))
	for i, tx := range txs {
		receipts[i] = new(types.Receipt)
		batch[i] = rpc.BatchElem{
			Method: "eth_getTransactionReceipt",
			Args:   []interface{}{tx.Hash()},
			Result: receipts[i],
		}
	}
	if len(batch) > 0 {
		if err := c.rpc.BatchCallContext(ctx, batch); err != nil {
			return nil, fmt.Errorf("fetch receipts of L1 block %s: %w", blockHash, err)
		}
		for i, elem := range batch {
			if elem.Error != nil {
				return nil, fmt.Errorf("fetch receipt of tx %s: %w", txs[i].Hash(), elem.Error)
			}
		}
	}
	if root := types.DeriveSha(receipts, trie.NewStackTrie(nil)); root != block.ReceiptHash() {
		return nil, fmt.Errorf("receipts of L1 block %s have root %s, header expects %s", blockHash, root, block.ReceiptHash())
	}
	return receipts, nil
}
