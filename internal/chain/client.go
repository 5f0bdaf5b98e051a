package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/tx"
)

// Client is an HTTP client with retry and timeout support for the node and
// indexer RPC endpoints.
type Client struct {
	httpClient   *http.Client
	nodeURL      string
	indexerURL   string
	maxRetries   int
	retryBackoff time.Duration
	logger       *logrus.Logger
}

// ClientConfig holds configuration for the chain client.
type ClientConfig struct {
	NodeURL      string
	IndexerURL   string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *logrus.Logger
}

// NewClient creates a new chain client with retry support.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.IndexerURL == "" {
		cfg.IndexerURL = cfg.NodeURL
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		nodeURL:      cfg.NodeURL,
		indexerURL:   cfg.IndexerURL,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       cfg.Logger,
	}
}

// Call makes a JSON-RPC call with retry logic.
func (c *Client) Call(ctx context.Context, url, method string, params interface{}, result interface{}) error {
	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"backoff": backoff,
				"method":  method,
			}).Debug("retrying RPC call")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2 // exponential backoff
		}

		resp, err := c.doRequest(ctx, url, data)
		if err != nil {
			lastErr = err
			continue
		}

		var env envelope
		if err := json.Unmarshal(resp, &env); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if env.Error != nil {
			return env.Error
		}
		if result != nil {
			if err := json.Unmarshal(env.Result, result); err != nil {
				return fmt.Errorf("failed to unmarshal result: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, url string, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// SendTransaction submits a signed settlement and returns the hash the node
// assigned it.
func (c *Client) SendTransaction(ctx context.Context, t *tx.Transaction) (string, error) {
	var hash string
	if err := c.Call(ctx, c.nodeURL, "send_transaction", []interface{}{t, "passthrough"}, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// GetTxStatus reports the node's view of one transaction. A transaction the
// node has never seen comes back as unknown, never as an error.
func (c *Client) GetTxStatus(ctx context.Context, txHash string) (string, error) {
	var result *txWithStatus
	if err := c.Call(ctx, c.nodeURL, "get_transaction", []interface{}{txHash}, &result); err != nil {
		return "", err
	}
	if result == nil || result.TxStatus.Status == "" {
		return TxStatusUnknown, nil
	}
	return result.TxStatus.Status, nil
}

// GetTxStatuses reports each transaction's status keyed by hash.
func (c *Client) GetTxStatuses(ctx context.Context, txHashes []string) (map[string]string, error) {
	out := make(map[string]string, len(txHashes))
	for _, h := range txHashes {
		status, err := c.GetTxStatus(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("status of %s: %w", h, err)
		}
		out[h] = status
	}
	return out, nil
}

// GetTipBlockNumber returns the chain tip height.
func (c *Client) GetTipBlockNumber(ctx context.Context) (uint64, error) {
	var tip string
	if err := c.Call(ctx, c.nodeURL, "get_tip_block_number", []interface{}{}, &tip); err != nil {
		return 0, err
	}
	return cell.HexToUint64(tip)
}

// GetCells pages through every live cell carrying the script, as lock or as
// type.
func (c *Client) GetCells(ctx context.Context, script cell.Script, scriptType string) ([]*cell.RawCell, error) {
	var (
		cells  []*cell.RawCell
		cursor interface{}
	)
	for {
		params := []interface{}{searchKey{Script: script, ScriptType: scriptType}, "asc", "0x64", cursor}
		var page liveCellPage
		if err := c.Call(ctx, c.indexerURL, "get_cells", params, &page); err != nil {
			return nil, err
		}
		for _, lc := range page.Objects {
			raw, err := lc.toRawCell()
			if err != nil {
				return nil, err
			}
			cells = append(cells, raw)
		}
		if len(page.Objects) == 0 || page.LastCursor == "" || page.LastCursor == "0x" {
			return cells, nil
		}
		cursor = page.LastCursor
	}
}

// GetLockScript recovers a user's original lock script: it walks the inputs
// of the transaction that created the request cell and returns the input
// lock whose hash the request recorded.
func (c *Client) GetLockScript(ctx context.Context, ref cell.OutPointRef, lockHash string) (cell.Script, bool, error) {
	var origin *txWithStatus
	if err := c.Call(ctx, c.nodeURL, "get_transaction", []interface{}{ref.TxHash}, &origin); err != nil {
		return cell.Script{}, false, err
	}
	if origin == nil || origin.Transaction == nil {
		return cell.Script{}, false, nil
	}

	for _, in := range origin.Transaction.Inputs {
		var prev *txWithStatus
		if err := c.Call(ctx, c.nodeURL, "get_transaction", []interface{}{in.PreviousOutput.TxHash}, &prev); err != nil {
			return cell.Script{}, false, err
		}
		if prev == nil || prev.Transaction == nil {
			continue
		}
		index, err := cell.HexToUint64(in.PreviousOutput.Index)
		if err != nil || int(index) >= len(prev.Transaction.Outputs) {
			continue
		}
		lock := prev.Transaction.Outputs[index].Lock
		h, err := lock.Hash()
		if err != nil {
			continue
		}
		if h == lockHash {
			return lock, true, nil
		}
	}
	return cell.Script{}, false, nil
}
