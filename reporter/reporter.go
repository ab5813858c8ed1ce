package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/zos-network/bridge-watcher/chain"
	"github.com/zos-network/bridge-watcher/db"
	"github.com/zos-network/bridge-watcher/logging"
	"github.com/zos-network/bridge-watcher/metrics"
	"github.com/zos-network/bridge-watcher/util"
)

const (
	// TickInterval paces the loop at roughly one settlement decision per tick,
	// which also bounds the outbound transaction rate.
	TickInterval  = 10 * time.Second
	SubmitTimeout = 30 * time.Second

	// MaxLastErrorLen bounds the stored remote failure message.
	MaxLastErrorLen = 200
)

var assertionPrefixRe = regexp.MustCompile(`(?i)assertion failure with message: `)

// outcome is a settlement decision: the next status plus the failure message
// to store, empty on success.
type outcome struct {
	status db.EventStatus
	err    string
}

// Reporter drives every settlement report through the forward-only state
// machine, coordinating signed transactions on the source and target networks.
// A single instance runs per deployment so no two attempts on the same report
// can race.
type Reporter struct {
	dao      db.BridgeDao
	registry *chain.Registry
}

func NewReporter(dao db.BridgeDao, registry *chain.Registry) *Reporter {
	return &Reporter{
		dao:      dao,
		registry: registry,
	}
}

// Run processes reports until ctx is cancelled, one per tick whether or not
// the previous one succeeded.
func (r *Reporter) Run(ctx context.Context) {
	logging.Logger.Info("reporter started")
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := r.processNext(ctx); err != nil {
			logging.Logger.Errorf("reporter: %s", err.Error())
		}
	}
}

// processNext picks the oldest active report, advances it one step and commits
// the new status. The commit is the only state mutation and the last action,
// so a failure anywhere leaves the report untouched for the next pass.
func (r *Reporter) processNext(ctx context.Context) error {
	report, err := r.dao.GetNextActiveReport()
	if err != nil {
		return err
	}
	if report == nil {
		return nil
	}
	event, err := r.dao.GetEvent(report.EventId)
	if err != nil {
		return err
	}

	logging.Logger.Infof("reporter: processing event %d (%s)", event.Id, report.Status)
	result, err := r.processTask(ctx, event, report)
	if err != nil {
		return err
	}

	logging.Logger.Infof("reporter: committing status %q for event %d", result.status, event.Id)
	if err = r.dao.CommitReportStatus(report.EventId, result.status, result.err); err != nil {
		return err
	}
	metrics.ProcessedReportCounter.WithLabelValues(result.status.String()).Inc()
	return nil
}

func (r *Reporter) processTask(ctx context.Context, event *db.Event, report *db.Report) (outcome, error) {
	switch report.Status {
	case db.StatusObserved:
		return r.processObserved(ctx, event), nil
	case db.StatusReportSuccess:
		return r.processReportSuccess(ctx, event), nil
	case db.StatusReportFailed:
		return r.processReportFailed(ctx, event, report), nil
	}
	// terminal and dead-end rows are never selected; reaching here is a bug
	return outcome{}, fmt.Errorf("unexpected status %q on event %d", report.Status, report.EventId)
}

// processObserved validates the event and reports the transfer on the target
// network.
func (r *Reporter) processObserved(ctx context.Context, event *db.Event) outcome {
	if event.Broken() {
		message := fmt.Sprintf("broken event %d: version=%q type=%q payload=%s",
			event.Id, event.EventVersion, event.EventType, event.EventPayload)
		logging.Logger.Info("reporter: " + message)
		return outcome{status: db.StatusBrokenEvent, err: truncateError(message)}
	}

	payload := event.Payload()
	targetNetwork, err := chain.ParseNetwork(payload.TargetBlockchain)
	if err != nil {
		return outcome{status: db.StatusReportFailed, err: sanitizeRemoteError(err)}
	}
	contracts, err := r.registry.Contracts(targetNetwork)
	if err != nil {
		return outcome{status: db.StatusReportFailed, err: sanitizeRemoteError(err)}
	}
	gateway, err := r.registry.Gateway(targetNetwork)
	if err != nil {
		return outcome{status: db.StatusReportFailed, err: sanitizeRemoteError(err)}
	}
	transferId, err := ComputeTransferId(event)
	if err != nil {
		return outcome{status: db.StatusReportFailed, err: sanitizeRemoteError(err)}
	}

	sourceRef, _ := json.Marshal(map[string]string{
		"txId":           event.TransactionId,
		"globalSequence": util.Uint64ToString(event.GlobalSequence),
	})
	sctx, cancel := context.WithTimeout(ctx, SubmitTimeout)
	defer cancel()
	_, err = gateway.Submit(sctx, []chain.Action{
		{
			Account: contracts.Bridge,
			Name:    "reporttx",
			Authorization: []chain.Authorization{
				{Actor: contracts.Reporter, Permission: contracts.ReporterPermission},
			},
			Data: map[string]interface{}{
				"reporter":      contracts.Reporter,
				"blockchain":    event.Network,
				"x_transfer_id": transferId,
				"target":        payload.TargetAccount,
				"quantity":      payload.Quantity,
				"memo":          "",
				"data":          string(sourceRef),
			},
		},
	})
	if err != nil {
		logging.Logger.Errorf("reporter: error while reporting event %d: %s", event.Id, err.Error())
		return outcome{status: db.StatusReportFailed, err: sanitizeRemoteError(err)}
	}
	logging.Logger.Infof("reporter: successfully reported event %d", event.Id)
	return outcome{status: db.StatusReportSuccess, err: ""}
}

// processReportSuccess resolves the transfer record on the source network
// without a refund.
func (r *Reporter) processReportSuccess(ctx context.Context, event *db.Event) outcome {
	err := r.resolveRecord(ctx, event, false, "")
	if err != nil {
		logging.Logger.Errorf("reporter: error while resolving event %d: %s", event.Id, err.Error())
		return outcome{status: db.StatusReportSuccessResolveFailed, err: sanitizeRemoteError(err)}
	}
	logging.Logger.Infof("reporter: successfully resolved event %d", event.Id)
	return outcome{status: db.StatusFinished, err: ""}
}

// processReportFailed refunds the transfer on the source network, carrying the
// report failure as the refund reason.
func (r *Reporter) processReportFailed(ctx context.Context, event *db.Event, report *db.Report) outcome {
	err := r.resolveRecord(ctx, event, true, report.LastError)
	if err != nil {
		logging.Logger.Errorf("reporter: error while refunding event %d: %s", event.Id, err.Error())
		return outcome{status: db.StatusReportFailedRefundFailed, err: sanitizeRemoteError(err)}
	}
	logging.Logger.Infof("reporter: successfully refunded event %d", event.Id)
	return outcome{status: db.StatusReportFailedRefundSuccess, err: ""}
}

func (r *Reporter) resolveRecord(ctx context.Context, event *db.Event, refund bool, reason string) error {
	sourceNetwork, err := chain.ParseNetwork(event.Network)
	if err != nil {
		return err
	}
	contracts, err := r.registry.Contracts(sourceNetwork)
	if err != nil {
		return err
	}
	gateway, err := r.registry.Gateway(sourceNetwork)
	if err != nil {
		return err
	}

	sctx, cancel := context.WithTimeout(ctx, SubmitTimeout)
	defer cancel()
	_, err = gateway.Submit(sctx, []chain.Action{
		{
			Account: contracts.Bridge,
			Name:    "resolverecord",
			Authorization: []chain.Authorization{
				{Actor: contracts.Reporter, Permission: contracts.ReporterPermission},
			},
			Data: map[string]interface{}{
				"reporter":    contracts.Reporter,
				"transfer_id": event.Payload().TransferId,
				"refund":      refund,
				"reason":      reason,
			},
		},
	})
	return err
}

// ComputeTransferId derives the deterministic id linking a transfer's source
// and target chain legs: the low 64 bits of the source transaction id XORed
// with the payload's transfer id. The target contract recomputes the same
// value from its own inputs, so no sequence counter is shared across chains.
func ComputeTransferId(event *db.Event) (string, error) {
	txId := event.TransactionId
	if len(txId) > 16 {
		txId = txId[:16]
	}
	txPart, err := util.HexToUint64(txId)
	if err != nil {
		return "", fmt.Errorf("transaction id %q is not parsable: %s", event.TransactionId, err.Error())
	}
	transferPart, err := util.StringToUint64(event.Payload().TransferId)
	if err != nil {
		return "", fmt.Errorf("transfer id %q is not parsable: %s", event.Payload().TransferId, err.Error())
	}
	return util.Uint64ToString(txPart ^ transferPart), nil
}

// sanitizeRemoteError prepares a failure for storage: the remote message only,
// assertion-failure prefixes stripped, bounded length.
func sanitizeRemoteError(err error) string {
	var gwErr *chain.GatewayError
	message := err.Error()
	if errors.As(err, &gwErr) {
		message = gwErr.Message
	}
	return truncateError(assertionPrefixRe.ReplaceAllString(message, ""))
}

func truncateError(message string) string {
	if len(message) > MaxLastErrorLen {
		return message[:MaxLastErrorLen]
	}
	return message
}
