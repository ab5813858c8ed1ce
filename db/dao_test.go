package db

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDao(t *testing.T) BridgeDao {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	// a fresh :memory: database exists per connection
	sqlDB.SetMaxOpenConns(1)
	InitTables(gormDB)
	return NewBridgeSvcDB(gormDB)
}

func testEvent(seq uint64) *Event {
	return &Event{
		Network:        "mainnet",
		BlockNumber:    100,
		TransactionId:  "a1b2c3d4e5f60718a1b2c3d4e5f60718",
		GlobalSequence: seq,
		EventVersion:   "1.0",
		EventType:      "xtransfer",
		EventPayload:   `{"transfer_id":"7","target_blockchain":"wax","target_account":"alice","quantity":"1.0000 ZOS"}`,
		ActionData:     `{"to":"bridge"}`,
		ConsoleOutput:  "",
	}
}

func TestGetOrInitWatermark(t *testing.T) {
	dao := setupTestDao(t)

	wm, err := dao.GetOrInitWatermark("mainnet", 500)
	require.NoError(t, err)
	require.Equal(t, uint64(500), wm.LastCommittedBlock)

	// an existing row is never reset by a changed start block
	wm, err = dao.GetOrInitWatermark("mainnet", 9000)
	require.NoError(t, err)
	require.Equal(t, uint64(500), wm.LastCommittedBlock)
}

func TestSaveEventsAndAdvanceWatermark(t *testing.T) {
	dao := setupTestDao(t)
	_, err := dao.GetOrInitWatermark("mainnet", 50)
	require.NoError(t, err)

	event := testEvent(42)
	require.NoError(t, dao.SaveEventsAndAdvanceWatermark("mainnet", []*Event{event}, 120))

	wm, err := dao.GetWatermark("mainnet")
	require.NoError(t, err)
	require.Equal(t, uint64(120), wm.LastCommittedBlock)

	report, err := dao.GetReport(event.Id)
	require.NoError(t, err)
	require.Equal(t, StatusObserved, report.Status)
	require.Equal(t, 0, report.Retries)
}

func TestIdempotentIngestion(t *testing.T) {
	dao := setupTestDao(t)
	_, err := dao.GetOrInitWatermark("mainnet", 50)
	require.NoError(t, err)

	require.NoError(t, dao.SaveEventsAndAdvanceWatermark("mainnet", []*Event{testEvent(42)}, 120))
	// overlapping re-scan commits the same global sequence again
	require.NoError(t, dao.SaveEventsAndAdvanceWatermark("mainnet", []*Event{testEvent(42)}, 130))

	report, err := dao.GetNextActiveReport()
	require.NoError(t, err)
	require.NotNil(t, report)

	next, err := dao.GetEvent(report.EventId)
	require.NoError(t, err)
	require.Equal(t, uint64(42), next.GlobalSequence)

	// exactly one row survived and the watermark still advanced
	require.NoError(t, dao.CommitReportStatus(report.EventId, StatusBrokenEvent, "x"))
	report, err = dao.GetNextActiveReport()
	require.NoError(t, err)
	require.Nil(t, report)

	wm, err := dao.GetWatermark("mainnet")
	require.NoError(t, err)
	require.Equal(t, uint64(130), wm.LastCommittedBlock)
}

func TestWatermarkNeverMovesBackwards(t *testing.T) {
	dao := setupTestDao(t)
	_, err := dao.GetOrInitWatermark("mainnet", 50)
	require.NoError(t, err)

	require.NoError(t, dao.SaveEventsAndAdvanceWatermark("mainnet", nil, 120))
	require.NoError(t, dao.SaveEventsAndAdvanceWatermark("mainnet", nil, 100))

	wm, err := dao.GetWatermark("mainnet")
	require.NoError(t, err)
	require.Equal(t, uint64(120), wm.LastCommittedBlock)
}

func TestGetNextActiveReportOrdering(t *testing.T) {
	dao := setupTestDao(t)
	_, err := dao.GetOrInitWatermark("mainnet", 50)
	require.NoError(t, err)

	first := testEvent(1)
	second := testEvent(2)
	require.NoError(t, dao.SaveEventsAndAdvanceWatermark("mainnet", []*Event{first, second}, 120))

	// oldest unfinished report comes first
	report, err := dao.GetNextActiveReport()
	require.NoError(t, err)
	require.Equal(t, first.Id, report.EventId)

	// terminal rows are no longer selected, dead-end rows neither
	require.NoError(t, dao.CommitReportStatus(first.Id, StatusFinished, ""))
	report, err = dao.GetNextActiveReport()
	require.NoError(t, err)
	require.Equal(t, second.Id, report.EventId)

	require.NoError(t, dao.CommitReportStatus(second.Id, StatusBrokenEvent, "no payload"))
	report, err = dao.GetNextActiveReport()
	require.NoError(t, err)
	require.Nil(t, report)
}

func TestCommitReportStatusBumpsRetries(t *testing.T) {
	dao := setupTestDao(t)
	_, err := dao.GetOrInitWatermark("mainnet", 50)
	require.NoError(t, err)

	event := testEvent(1)
	require.NoError(t, dao.SaveEventsAndAdvanceWatermark("mainnet", []*Event{event}, 120))

	require.NoError(t, dao.CommitReportStatus(event.Id, StatusReportFailed, "insufficient balance"))
	report, err := dao.GetReport(event.Id)
	require.NoError(t, err)
	require.Equal(t, StatusReportFailed, report.Status)
	require.Equal(t, "insufficient balance", report.LastError)
	require.Equal(t, 1, report.Retries)

	require.NoError(t, dao.CommitReportStatus(event.Id, StatusReportFailedRefundSuccess, ""))
	report, err = dao.GetReport(event.Id)
	require.NoError(t, err)
	require.Equal(t, 2, report.Retries)
	require.Equal(t, "", report.LastError)
}

func TestReviewCheckpoint(t *testing.T) {
	dao := setupTestDao(t)

	cp, err := dao.GetReviewCheckpoint()
	require.NoError(t, err)
	require.Equal(t, int64(0), cp.LastReviewedEventId)

	require.NoError(t, dao.AdvanceReviewCheckpoint(17))
	cp, err = dao.GetReviewCheckpoint()
	require.NoError(t, err)
	require.Equal(t, int64(17), cp.LastReviewedEventId)
}

func TestGetOldestUnreviewedDeadEnd(t *testing.T) {
	dao := setupTestDao(t)
	_, err := dao.GetOrInitWatermark("mainnet", 50)
	require.NoError(t, err)

	first := testEvent(1)
	second := testEvent(2)
	require.NoError(t, dao.SaveEventsAndAdvanceWatermark("mainnet", []*Event{first, second}, 120))
	require.NoError(t, dao.CommitReportStatus(first.Id, StatusBrokenEvent, "broken"))
	require.NoError(t, dao.CommitReportStatus(second.Id, StatusFinished, ""))

	report, err := dao.GetOldestUnreviewedDeadEnd(0)
	require.NoError(t, err)
	require.NotNil(t, report)
	require.Equal(t, first.Id, report.EventId)

	// triaged once the checkpoint moves past it; finished rows never count
	report, err = dao.GetOldestUnreviewedDeadEnd(first.Id)
	require.NoError(t, err)
	require.Nil(t, report)
}

func TestListReports(t *testing.T) {
	dao := setupTestDao(t)
	_, err := dao.GetOrInitWatermark("mainnet", 50)
	require.NoError(t, err)

	event := testEvent(1)
	require.NoError(t, dao.SaveEventsAndAdvanceWatermark("mainnet", []*Event{event}, 120))

	rows, err := dao.ListReports(100)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, event.Id, rows[0].EventId)
	require.Equal(t, "mainnet", rows[0].Network)
	require.Equal(t, uint64(1), rows[0].GlobalSequence)
}

func TestIsDuplicateEntryErr(t *testing.T) {
	require.False(t, IsDuplicateEntryErr(nil))
	require.False(t, IsDuplicateEntryErr(gorm.ErrRecordNotFound))
}

func TestStatusSets(t *testing.T) {
	for _, s := range ActiveStatuses {
		require.False(t, s.Terminal(), s.String())
		require.False(t, s.DeadEnd(), s.String())
	}
	for _, s := range DeadEndStatuses {
		require.True(t, s.Terminal(), s.String())
		require.True(t, s.DeadEnd(), s.String())
	}
	require.True(t, StatusFinished.Terminal())
	require.False(t, StatusFinished.DeadEnd())
	require.True(t, StatusReportFailedRefundSuccess.Terminal())
	require.False(t, StatusReportFailedRefundSuccess.DeadEnd())
}
