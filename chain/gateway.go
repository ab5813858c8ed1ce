package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/zos-network/bridge-watcher/config"
)

const (
	getInfoPath = "/v1/chain/get_info"
	searchPath  = "/v0/search/transactions"
	submitPath  = "/v1/submit"

	searchPageLimit = 100
)

// Gateway is the per-network chain capability the core consumes: current
// finalized height, cursor-paginated transaction search over a block range,
// and submission of a signed action list.
type Gateway interface {
	HeadBlockNumber(ctx context.Context) (uint64, error)
	SearchTransactions(ctx context.Context, receiver string, fromBlock, toBlock uint64, cursor string) (*SearchResult, error)
	Submit(ctx context.Context, actions []Action) (string, error)
}

type HTTPGateway struct {
	hc             *http.Client
	network        Network
	cfg            *config.NetworkConfig
	searchAPIKey   string
	signerEndpoint string
}

func NewHTTPGateway(network Network, cfg *config.NetworkConfig, searchAPIKey, signerEndpoint string) *HTTPGateway {
	transport := &http.Transport{
		DisableCompression:  true,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
	client := &http.Client{
		Timeout:   time.Minute,
		Transport: transport,
	}
	return &HTTPGateway{
		hc:             client,
		network:        network,
		cfg:            cfg,
		searchAPIKey:   searchAPIKey,
		signerEndpoint: signerEndpoint,
	}
}

// HeadBlockNumber returns the last-irreversible block; scans never reach past
// it so committed rows cannot be reverted by the chain.
func (g *HTTPGateway) HeadBlockNumber(ctx context.Context) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.NodeEndpoint+getInfoPath, nil)
	if err != nil {
		return 0, err
	}
	resp, err := g.hc.Do(req)
	if err != nil {
		return 0, &GatewayError{Network: g.network, Op: "get_info", Message: err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, &GatewayError{Network: g.network, Op: "get_info", Message: string(body)}
	}
	var info struct {
		LastIrreversibleBlockNum uint64 `json:"last_irreversible_block_num"`
	}
	if err = json.Unmarshal(body, &info); err != nil {
		return 0, err
	}
	return info.LastIrreversibleBlockNum, nil
}

// SearchTransactions fetches one page of transactions received by receiver in
// [fromBlock, toBlock), ascending. Pass the previous page's NextCursor to
// continue; an empty cursor starts over.
func (g *HTTPGateway) SearchTransactions(ctx context.Context, receiver string, fromBlock, toBlock uint64, cursor string) (*SearchResult, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("receiver:%s", receiver))
	query.Set("start_block", fmt.Sprintf("%d", fromBlock))
	query.Set("block_count", fmt.Sprintf("%d", toBlock-fromBlock))
	query.Set("limit", fmt.Sprintf("%d", searchPageLimit))
	query.Set("sort", "asc")
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.SearchEndpoint+searchPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if g.searchAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.searchAPIKey)
	}
	resp, err := g.hc.Do(req)
	if err != nil {
		return nil, &GatewayError{Network: g.network, Op: "search_transactions", Message: err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &GatewayError{Network: g.network, Op: "search_transactions", Message: string(body)}
	}
	result := SearchResult{}
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Submit hands the action list to the signer service, which holds the keys,
// signs for this network's chain id and broadcasts. When the network has a
// configured CPU payer its payforcpu action is prepended transparently.
func (g *HTTPGateway) Submit(ctx context.Context, actions []Action) (string, error) {
	if g.cfg.CPUPayer != "" {
		payForCPU := Action{
			Account: g.cfg.CPUPayer,
			Name:    "payforcpu",
			Authorization: []Authorization{
				{Actor: g.cfg.CPUPayer, Permission: "payforcpu"},
			},
			Data: map[string]interface{}{},
		}
		actions = append([]Action{payForCPU}, actions...)
	}

	payload, err := json.Marshal(struct {
		Network string   `json:"network"`
		ChainId string   `json:"chain_id"`
		Actions []Action `json:"actions"`
	}{
		Network: string(g.network),
		ChainId: g.cfg.ChainId,
		Actions: actions,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.signerEndpoint+submitPath, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.hc.Do(req)
	if err != nil {
		return "", &GatewayError{Network: g.network, Op: "submit", Message: err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &GatewayError{Network: g.network, Op: "submit", Message: remoteMessage(body)}
	}
	var submitResp struct {
		TransactionId string `json:"transaction_id"`
	}
	if err = json.Unmarshal(body, &submitResp); err != nil {
		return "", err
	}
	return submitResp.TransactionId, nil
}

// remoteMessage extracts the human-readable error from a failed submission
// response, falling back to the raw body.
func remoteMessage(body []byte) string {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}
	return string(body)
}
