package chain

import (
	"fmt"
	"strings"
)

// GatewayError is a failure reported by a chain's RPC, search or signer
// infrastructure, carrying the human-readable remote message.
type GatewayError struct {
	Network Network
	Op      string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Network, e.Op, e.Message)
}

// IsBeyondLIB recognizes the benign search error raised when the requested
// range reaches past the chain's last-irreversible block. The search service
// sometimes disagrees with the node about where the LIB is; callers retry
// after a delay without logging it as an error.
func IsBeyondLIB(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "goes beyond lib")
}

type Authorization struct {
	Actor      string `json:"actor"`
	Permission string `json:"permission"`
}

// Action is one contract action of a transaction to submit.
type Action struct {
	Account       string                 `json:"account"`
	Name          string                 `json:"name"`
	Authorization []Authorization        `json:"authorization"`
	Data          map[string]interface{} `json:"data"`
}

// SearchResult is one page of the transaction search. An empty NextCursor
// means the range is exhausted.
type SearchResult struct {
	NextCursor   string                  `json:"cursor"`
	Transactions []*SearchTransactionRow `json:"transactions"`
}

type SearchTransactionRow struct {
	Lifecycle Lifecycle `json:"lifecycle"`
}

type Lifecycle struct {
	ExecutionTrace *ExecutionTrace `json:"execution_trace"`
}

// ExecutionTrace is the full execution trace of one matched transaction.
type ExecutionTrace struct {
	Id           string         `json:"id"`
	BlockNum     uint64         `json:"block_num"`
	BlockTime    string         `json:"block_time"`
	ActionTraces []*ActionTrace `json:"action_traces"`
}

// ActionTrace is one executed action; the transfer the watcher looks for may
// sit arbitrarily deep in InlineTraces.
type ActionTrace struct {
	Receipt      TraceReceipt   `json:"receipt"`
	Act          TraceAct       `json:"act"`
	Console      string         `json:"console"`
	TrxId        string         `json:"trx_id"`
	BlockNum     uint64         `json:"block_num"`
	BlockTime    string         `json:"block_time"`
	InlineTraces []*ActionTrace `json:"inline_traces"`
}

type TraceReceipt struct {
	Receiver string `json:"receiver"`
	// GlobalSequence is unique per non-failed action across the whole chain.
	GlobalSequence uint64 `json:"global_sequence"`
	RecvSequence   uint64 `json:"recv_sequence"`
	ActDigest      string `json:"act_digest"`
}

type TraceAct struct {
	Account string                 `json:"account"`
	Name    string                 `json:"name"`
	Data    map[string]interface{} `json:"data"`
}
