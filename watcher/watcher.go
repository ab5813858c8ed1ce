package watcher

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/zos-network/bridge-watcher/chain"
	"github.com/zos-network/bridge-watcher/db"
	"github.com/zos-network/bridge-watcher/logging"
	"github.com/zos-network/bridge-watcher/metrics"
	"github.com/zos-network/bridge-watcher/util"
)

const (
	// MaxBlockRangePerSearch bounds one scan window, about an hour of blocks.
	MaxBlockRangePerSearch = 7200

	CaughtUpSleepTime = 10 * time.Second
	ErrorSleepTime    = 10 * time.Second
	RPCTimeout        = 10 * time.Second
	// SearchTimeout races the search call independently of the client's own
	// timeout; the search service occasionally hangs and never returns.
	SearchTimeout = 20 * time.Second

	// TransferEventType tags the application event emitted by a bridge
	// transfer in the action's console output.
	TransferEventType = "xtransfer"
)

// pendingAction is one matched transfer action awaiting commit.
type pendingAction struct {
	blockNumber    uint64
	blockTime      string
	trxId          string
	globalSequence uint64
	data           map[string]interface{}
	console        string
}

// Watcher scans one network for transfers into the bridge contract and turns
// them into deduplicated ledger rows behind a crash-safe watermark.
type Watcher struct {
	dao            db.BridgeDao
	gateway        chain.Gateway
	network        chain.Network
	accountToWatch string
	tokenContract  string
	startBlock     uint64

	// pollInterval and retryInterval pace the loop; NewWatcher sets the
	// defaults, tests may leave them zero
	pollInterval  time.Duration
	retryInterval time.Duration

	fromBlock      uint64
	pendingActions []*pendingAction
}

func NewWatcher(dao db.BridgeDao, registry *chain.Registry, network chain.Network) (*Watcher, error) {
	gateway, err := registry.Gateway(network)
	if err != nil {
		return nil, err
	}
	contracts, err := registry.Contracts(network)
	if err != nil {
		return nil, err
	}
	startBlock, err := registry.StartBlock(network)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		dao:            dao,
		gateway:        gateway,
		network:        network,
		accountToWatch: contracts.Bridge,
		tokenContract:  contracts.Token,
		startBlock:     startBlock,
		pollInterval:   CaughtUpSleepTime,
		retryInterval:  ErrorSleepTime,
	}, nil
}

// Run scans until ctx is cancelled. An unreachable store at boot is fatal;
// everything later is logged and retried after a fixed delay.
func (w *Watcher) Run(ctx context.Context) {
	wm, err := w.dao.GetOrInitWatermark(string(w.network), w.startBlock)
	if err != nil {
		panic(err)
	}
	w.fromBlock = wm.LastCommittedBlock + 1
	logging.Logger.Infof("%s: watcher starting at block %d", w.network, w.fromBlock)

	for {
		if ctx.Err() != nil {
			return
		}
		if err := w.scanOnce(ctx); err != nil {
			if chain.IsBeyondLIB(err) {
				logging.Logger.Debugf("%s: search range beyond LIB, backing off", w.network)
			} else {
				logging.Logger.Errorf("watcher (%s): %s", w.network, err.Error())
			}
			if !w.sleep(ctx, w.retryInterval) {
				return
			}
		}
	}
}

// scanOnce runs one iteration: pick the next window below the chain head,
// scan it, commit and advance. Caught up means wait a poll interval.
func (w *Watcher) scanOnce(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, RPCTimeout)
	head, err := w.gateway.HeadBlockNumber(hctx)
	cancel()
	if err != nil {
		return err
	}

	toBlock := w.fromBlock + MaxBlockRangePerSearch
	if head < toBlock {
		toBlock = head
	}

	if toBlock > w.fromBlock {
		if err = w.scanRange(ctx, w.fromBlock, toBlock); err != nil {
			return err
		}
		if err = w.commit(toBlock); err != nil {
			return err
		}
		w.fromBlock = toBlock + 1
	}

	// signed: the reported LIB can regress between polls
	metrics.HeadBlockDiffGauge.WithLabelValues(string(w.network)).Set(float64(int64(head) - int64(w.fromBlock-1)))

	if toBlock == head {
		w.sleep(ctx, w.pollInterval)
	}
	return nil
}

// scanRange follows the search cursor until the range is exhausted. On any
// failure the caller re-scans the whole range with a fresh search; a cursor is
// never resumed across a timeout. Matches already collected stay pending, the
// ledger's uniqueness constraint drops re-collected duplicates at commit.
func (w *Watcher) scanRange(ctx context.Context, fromBlock, toBlock uint64) error {
	cursor := ""
	for {
		sctx, cancel := context.WithTimeout(ctx, SearchTimeout)
		result, err := w.gateway.SearchTransactions(sctx, w.accountToWatch, fromBlock, toBlock, cursor)
		cancel()
		if err != nil {
			return err
		}
		for _, row := range result.Transactions {
			w.collectMatches(row)
		}
		cursor = result.NextCursor
		if cursor == "" {
			return nil
		}
	}
}

// collectMatches walks the transaction's execution trace breadth first; the
// inbound transfer may be nested arbitrarily deep inside other contract calls.
func (w *Watcher) collectMatches(row *chain.SearchTransactionRow) {
	trace := row.Lifecycle.ExecutionTrace
	if trace == nil {
		return
	}
	queue := make([]*chain.ActionTrace, len(trace.ActionTraces))
	copy(queue, trace.ActionTraces)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if w.isMatchingTrace(cur) {
			logging.Logger.Infof("%s: pending %s:%s @ %d", w.network, cur.Act.Account, cur.Act.Name, trace.BlockNum)
			w.pendingActions = append(w.pendingActions, &pendingAction{
				blockNumber:    cur.BlockNum,
				blockTime:      cur.BlockTime,
				trxId:          cur.TrxId,
				globalSequence: cur.Receipt.GlobalSequence,
				data:           cur.Act.Data,
				console:        cur.Console,
			})
		}
		queue = append(queue, cur.InlineTraces...)
	}
}

func (w *Watcher) isMatchingTrace(trace *chain.ActionTrace) bool {
	if trace.Receipt.Receiver != w.accountToWatch {
		return false
	}
	to, _ := trace.Act.Data["to"].(string)
	return trace.Act.Account == w.tokenContract &&
		trace.Act.Name == "transfer" &&
		to == w.accountToWatch
}

// commit writes all pending rows plus their observed reports and advances the
// watermark in one transaction. On failure the watermark stays put and the
// range is re-derived from it, so dropping the pending batch is safe.
func (w *Watcher) commit(toBlock uint64) error {
	logging.Logger.Debugf("%s: committing all actions up to block %d", w.network, toBlock)

	actions := w.pendingActions
	w.pendingActions = nil

	events := make([]*db.Event, 0, len(actions))
	for _, action := range actions {
		events = append(events, w.toEvent(action))
	}
	if err := w.dao.SaveEventsAndAdvanceWatermark(string(w.network), events, toBlock); err != nil {
		return err
	}
	metrics.LastCommittedBlockGauge.WithLabelValues(string(w.network)).Set(float64(toBlock))
	if len(events) > 0 {
		logging.Logger.Infof("%s: committed %d event(s), watermark now %d", w.network, len(events), toBlock)
	}
	return nil
}

func (w *Watcher) toEvent(action *pendingAction) *db.Event {
	version, etype, payload := ExtractTransferEvent(action.console)
	if etype == "" {
		// A malformed or absent application event still produces an auditable
		// ledger row; the reporter classifies it broken later.
		logging.Logger.Errorf("%s: cannot parse application event at tx %q: %q", w.network, action.trxId, action.console)
	}

	timestamp, err := util.ParseBlockTime(action.blockTime)
	if err != nil {
		logging.Logger.Debugf("%s: unparsable block time %q at tx %q", w.network, action.blockTime, action.trxId)
	}
	actionData, err := json.Marshal(action.data)
	if err != nil {
		actionData = []byte("{}")
	}

	return &db.Event{
		Network:        string(w.network),
		BlockNumber:    action.blockNumber,
		Timestamp:      timestamp,
		TransactionId:  action.trxId,
		GlobalSequence: action.globalSequence,
		EventVersion:   version,
		EventType:      etype,
		EventPayload:   payload,
		ActionData:     string(actionData),
		ConsoleOutput:  action.console,
	}
}

// ExtractTransferEvent scans an action's console output, a newline-delimited
// sequence of JSON objects, for the transfer application event. Everything
// besides the version and type markers is the payload. Returns empty strings
// when no well-formed transfer event is present.
func ExtractTransferEvent(console string) (version, etype, payload string) {
	for _, line := range strings.Split(console, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := map[string]interface{}{}
		if err := json.Unmarshal([]byte(line), &fields); err != nil {
			continue
		}
		if fields["etype"] != TransferEventType {
			continue
		}
		version, _ = fields["version"].(string)
		etype = TransferEventType
		delete(fields, "version")
		delete(fields, "etype")
		payloadBz, err := json.Marshal(fields)
		if err != nil {
			return "", "", ""
		}
		return version, etype, string(payloadBz)
	}
	return "", "", ""
}

// sleep waits d unless ctx is cancelled first; reports whether the watcher
// should keep running.
func (w *Watcher) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
