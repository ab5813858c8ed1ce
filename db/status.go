package db

// EventStatus is the settlement state of one transfer event. The numeric
// values are persisted; never reorder them.
type EventStatus int

const (
	StatusObserved                  EventStatus = 0 // nothing happened yet
	StatusReportSuccess             EventStatus = 1 // reported on the target network, pending resolve
	StatusReportFailed              EventStatus = 2 // report rejected, pending refund on the source network
	StatusFinished                  EventStatus = 3
	StatusReportFailedRefundSuccess EventStatus = 4
	// states below require manual review
	StatusReportFailedRefundFailed   EventStatus = 5
	StatusReportSuccessResolveFailed EventStatus = 6
	StatusBrokenEvent                EventStatus = 7
)

// ActiveStatuses is the explicit set of states the reporter still acts on.
// Selection is by membership in this set, never by comparing ordinals, so
// adding a state cannot silently pull dead rows back into the loop.
var ActiveStatuses = []EventStatus{
	StatusObserved,
	StatusReportSuccess,
	StatusReportFailed,
}

// DeadEndStatuses are the states that need an operator to look at them.
var DeadEndStatuses = []EventStatus{
	StatusReportFailedRefundFailed,
	StatusReportSuccessResolveFailed,
	StatusBrokenEvent,
}

func (s EventStatus) String() string {
	switch s {
	case StatusObserved:
		return "observed"
	case StatusReportSuccess:
		return "report_success"
	case StatusReportFailed:
		return "report_failed"
	case StatusFinished:
		return "finished"
	case StatusReportFailedRefundSuccess:
		return "report_failed_refund_success"
	case StatusReportFailedRefundFailed:
		return "report_failed_refund_failed"
	case StatusReportSuccessResolveFailed:
		return "report_success_resolve_failed"
	case StatusBrokenEvent:
		return "broken_event"
	}
	return "unknown"
}

// Terminal reports whether no further automatic transition exists from s.
func (s EventStatus) Terminal() bool {
	for _, active := range ActiveStatuses {
		if s == active {
			return false
		}
	}
	return true
}

// DeadEnd reports whether s needs manual review.
func (s EventStatus) DeadEnd() bool {
	for _, dead := range DeadEndStatuses {
		if s == dead {
			return true
		}
	}
	return false
}
