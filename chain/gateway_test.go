package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zos-network/bridge-watcher/config"
)

func testGateway(t *testing.T, node, search, signer string, cpuPayer string) *HTTPGateway {
	t.Helper()
	return NewHTTPGateway(Mainnet, &config.NetworkConfig{
		Name:           "mainnet",
		NodeEndpoint:   node,
		SearchEndpoint: search,
		ChainId:        "aca376f206b8fc25a6ed44dbdc66547c",
		CPUPayer:       cpuPayer,
	}, "test-api-key", signer)
}

func TestHeadBlockNumber(t *testing.T) {
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chain/get_info", r.URL.Path)
		_, _ = w.Write([]byte(`{"head_block_num":1000,"last_irreversible_block_num":993}`))
	}))
	defer node.Close()

	gw := testGateway(t, node.URL, node.URL, node.URL, "")
	head, err := gw.HeadBlockNumber(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(993), head)
}

func TestHeadBlockNumberError(t *testing.T) {
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("node exploded"))
	}))
	defer node.Close()

	gw := testGateway(t, node.URL, node.URL, node.URL, "")
	_, err := gw.HeadBlockNumber(context.Background())
	require.Error(t, err)
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, "node exploded", gwErr.Message)
}

func TestSearchTransactions(t *testing.T) {
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0/search/transactions", r.URL.Path)
		require.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		q := r.URL.Query()
		require.Equal(t, "receiver:zosbridge111", q.Get("q"))
		require.Equal(t, "100", q.Get("start_block"))
		require.Equal(t, "50", q.Get("block_count"))
		require.Equal(t, "asc", q.Get("sort"))
		require.Equal(t, "page-2", q.Get("cursor"))
		_, _ = w.Write([]byte(`{
			"cursor": "page-3",
			"transactions": [{
				"lifecycle": {
					"execution_trace": {
						"id": "a1b2c3",
						"block_num": 105,
						"action_traces": [{
							"receipt": {"receiver": "zosbridge111", "global_sequence": 42},
							"act": {"account": "zostoken1111", "name": "transfer", "data": {"to": "zosbridge111"}},
							"console": "{\"etype\":\"xtransfer\"}",
							"trx_id": "a1b2c3",
							"inline_traces": [{
								"receipt": {"receiver": "other", "global_sequence": 43},
								"act": {"account": "other", "name": "noop", "data": {}}
							}]
						}]
					}
				}
			}]
		}`))
	}))
	defer search.Close()

	gw := testGateway(t, search.URL, search.URL, search.URL, "")
	result, err := gw.SearchTransactions(context.Background(), "zosbridge111", 100, 150, "page-2")
	require.NoError(t, err)
	require.Equal(t, "page-3", result.NextCursor)
	require.Len(t, result.Transactions, 1)

	trace := result.Transactions[0].Lifecycle.ExecutionTrace
	require.NotNil(t, trace)
	require.Equal(t, uint64(105), trace.BlockNum)
	require.Len(t, trace.ActionTraces, 1)
	require.Equal(t, uint64(42), trace.ActionTraces[0].Receipt.GlobalSequence)
	require.Equal(t, "transfer", trace.ActionTraces[0].Act.Name)
	require.Len(t, trace.ActionTraces[0].InlineTraces, 1)
}

func TestSearchBeyondLIB(t *testing.T) {
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"the request goes beyond LIB, retry later"}`))
	}))
	defer search.Close()

	gw := testGateway(t, search.URL, search.URL, search.URL, "")
	_, err := gw.SearchTransactions(context.Background(), "zosbridge111", 100, 150, "")
	require.Error(t, err)
	require.True(t, IsBeyondLIB(err))
}

func TestIsBeyondLIB(t *testing.T) {
	require.False(t, IsBeyondLIB(nil))
	require.False(t, IsBeyondLIB(&GatewayError{Message: "timeout"}))
	require.True(t, IsBeyondLIB(&GatewayError{Message: "range GOES BEYOND lib"}))
}

func TestSubmit(t *testing.T) {
	var got struct {
		Network string   `json:"network"`
		ChainId string   `json:"chain_id"`
		Actions []Action `json:"actions"`
	}
	signer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/submit", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"transaction_id":"feedface"}`))
	}))
	defer signer.Close()

	gw := testGateway(t, signer.URL, signer.URL, signer.URL, "")
	txId, err := gw.Submit(context.Background(), []Action{
		{Account: "zosbridge111", Name: "reporttx", Data: map[string]interface{}{}},
	})
	require.NoError(t, err)
	require.Equal(t, "feedface", txId)
	require.Equal(t, "mainnet", got.Network)
	require.Equal(t, "aca376f206b8fc25a6ed44dbdc66547c", got.ChainId)
	require.Len(t, got.Actions, 1)
}

func TestSubmitPrependsPayForCPU(t *testing.T) {
	var got struct {
		Actions []Action `json:"actions"`
	}
	signer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"transaction_id":"feedface"}`))
	}))
	defer signer.Close()

	gw := testGateway(t, signer.URL, signer.URL, signer.URL, "zoscpupayer1")
	_, err := gw.Submit(context.Background(), []Action{
		{Account: "zosbridge111", Name: "reporttx", Data: map[string]interface{}{}},
	})
	require.NoError(t, err)
	require.Len(t, got.Actions, 2)
	require.Equal(t, "zoscpupayer1", got.Actions[0].Account)
	require.Equal(t, "payforcpu", got.Actions[0].Name)
	require.Equal(t, "payforcpu", got.Actions[0].Authorization[0].Permission)
	require.Equal(t, "reporttx", got.Actions[1].Name)
}

func TestSubmitRemoteError(t *testing.T) {
	signer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"assertion failure with message: insufficient balance"}`))
	}))
	defer signer.Close()

	gw := testGateway(t, signer.URL, signer.URL, signer.URL, "")
	_, err := gw.Submit(context.Background(), []Action{{Account: "a", Name: "b"}})
	require.Error(t, err)
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, "assertion failure with message: insufficient balance", gwErr.Message)
}
