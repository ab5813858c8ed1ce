package db

// Report is the mutable settlement state of one event, keyed by the event id.
// Rows are created together with their event and only ever move forward
// through the state machine; terminal and dead-end rows are kept for audit.
type Report struct {
	EventId   int64       `gorm:"primaryKey"`
	Status    EventStatus `gorm:"NOT NULL;index:idx_report_status"`
	Retries   int         `gorm:"NOT NULL"`
	LastError string      `gorm:"size:255"`
}

func (*Report) TableName() string {
	return "report"
}
