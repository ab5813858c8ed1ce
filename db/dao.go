package db

import (
	"gorm.io/gorm"
)

type BridgeDao interface {
	WatermarkDB
	EventDB
	ReportDB
	CheckpointDB
}

type BridgeSvcDB struct {
	db *gorm.DB
}

func NewBridgeSvcDB(db *gorm.DB) BridgeDao {
	return &BridgeSvcDB{
		db,
	}
}

type WatermarkDB interface {
	GetWatermark(network string) (*Watermark, error)
	GetOrInitWatermark(network string, startBlock uint64) (*Watermark, error)
}

func (d *BridgeSvcDB) GetWatermark(network string) (*Watermark, error) {
	wm := Watermark{}
	err := d.db.Model(Watermark{}).Where("network = ?", network).Take(&wm).Error
	if err != nil {
		return nil, err
	}
	return &wm, nil
}

// GetOrInitWatermark bootstraps the watermark row at the network's historical
// start block on first use; an existing row is never moved backwards.
func (d *BridgeSvcDB) GetOrInitWatermark(network string, startBlock uint64) (*Watermark, error) {
	wm := Watermark{Network: network, LastCommittedBlock: startBlock}
	err := d.db.Where(Watermark{Network: network}).FirstOrCreate(&wm).Error
	if err != nil {
		return nil, err
	}
	return &wm, nil
}

type EventDB interface {
	GetEvent(id int64) (*Event, error)
	SaveEventsAndAdvanceWatermark(network string, events []*Event, toBlock uint64) error
}

func (d *BridgeSvcDB) GetEvent(id int64) (*Event, error) {
	event := Event{}
	err := d.db.Model(Event{}).Where("id = ?", id).Take(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// SaveEventsAndAdvanceWatermark commits one scanned range: every event row,
// one observed report per row, and the advanced watermark, all-or-nothing.
// Rows rejected by the (network, global_sequence) uniqueness constraint are
// skipped; they were committed by an earlier overlapping scan.
func (d *BridgeSvcDB) SaveEventsAndAdvanceWatermark(network string, events []*Event, toBlock uint64) error {
	return d.db.Transaction(func(dbTx *gorm.DB) error {
		for _, event := range events {
			err := dbTx.Create(event).Error
			if err != nil {
				if IsDuplicateEntryErr(err) {
					continue
				}
				return err
			}
			err = dbTx.Create(&Report{
				EventId:   event.Id,
				Status:    StatusObserved,
				LastError: "",
			}).Error
			if err != nil {
				return err
			}
		}
		return dbTx.Model(Watermark{}).
			Where("network = ? AND last_committed_block < ?", network, toBlock).
			Update("last_committed_block", toBlock).Error
	})
}

type ReportDB interface {
	GetNextActiveReport() (*Report, error)
	GetReport(eventId int64) (*Report, error)
	CommitReportStatus(eventId int64, status EventStatus, lastError string) error
	GetOldestUnreviewedDeadEnd(afterEventId int64) (*Report, error)
	ListReports(limit int) ([]*ReportDetail, error)
}

// GetNextActiveReport returns the oldest report the reporter still has to act
// on, or nil when none is pending.
func (d *BridgeSvcDB) GetNextActiveReport() (*Report, error) {
	report := Report{}
	err := d.db.Model(Report{}).Where("status IN ?", ActiveStatuses).
		Order("event_id asc").Take(&report).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &report, nil
}

func (d *BridgeSvcDB) GetReport(eventId int64) (*Report, error) {
	report := Report{}
	err := d.db.Model(Report{}).Where("event_id = ?", eventId).Take(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (d *BridgeSvcDB) CommitReportStatus(eventId int64, status EventStatus, lastError string) error {
	return d.db.Transaction(func(dbTx *gorm.DB) error {
		return dbTx.Model(Report{}).Where("event_id = ?", eventId).
			Updates(map[string]interface{}{
				"status":     status,
				"last_error": lastError,
				"retries":    gorm.Expr("retries + 1"),
			}).Error
	})
}

// GetOldestUnreviewedDeadEnd returns the oldest dead-end report past the
// manual-review checkpoint, or nil when everything is triaged.
func (d *BridgeSvcDB) GetOldestUnreviewedDeadEnd(afterEventId int64) (*Report, error) {
	report := Report{}
	err := d.db.Model(Report{}).
		Where("status IN ? AND event_id > ?", DeadEndStatuses, afterEventId).
		Order("event_id asc").Take(&report).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &report, nil
}

// ReportDetail is a report joined with its event, for operator triage views.
type ReportDetail struct {
	EventId        int64
	Status         EventStatus
	Retries        int
	LastError      string
	Network        string
	BlockNumber    uint64
	TransactionId  string
	GlobalSequence uint64
	EventPayload   string
}

func (d *BridgeSvcDB) ListReports(limit int) ([]*ReportDetail, error) {
	rows := make([]*ReportDetail, 0)
	err := d.db.Table("report").
		Select("report.event_id, report.status, report.retries, report.last_error, " +
			"event.network, event.block_number, event.transaction_id, event.global_sequence, event.event_payload").
		Joins("JOIN event ON event.id = report.event_id").
		Order("report.status desc").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type CheckpointDB interface {
	GetReviewCheckpoint() (*ReviewCheckpoint, error)
	AdvanceReviewCheckpoint(eventId int64) error
}

func (d *BridgeSvcDB) GetReviewCheckpoint() (*ReviewCheckpoint, error) {
	cp := ReviewCheckpoint{Id: ReviewCheckpointId}
	err := d.db.Where(ReviewCheckpoint{Id: ReviewCheckpointId}).FirstOrCreate(&cp).Error
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (d *BridgeSvcDB) AdvanceReviewCheckpoint(eventId int64) error {
	return d.db.Transaction(func(dbTx *gorm.DB) error {
		return dbTx.Model(ReviewCheckpoint{}).Where("id = ?", ReviewCheckpointId).
			Update("last_reviewed_event_id", eventId).Error
	})
}

func InitTables(db *gorm.DB) {
	var err error
	if err = db.AutoMigrate(&Watermark{}); err != nil {
		panic(err)
	}
	if err = db.AutoMigrate(&Event{}); err != nil {
		panic(err)
	}
	if err = db.AutoMigrate(&Report{}); err != nil {
		panic(err)
	}
	if err = db.AutoMigrate(&ReviewCheckpoint{}); err != nil {
		panic(err)
	}
}
