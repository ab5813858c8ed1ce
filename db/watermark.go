package db

// Watermark records, per network, the last block whose matching events are
// fully committed. Monotone; advanced only by that network's watcher and only
// in the same transaction as the event rows of the scanned range.
type Watermark struct {
	Network            string `gorm:"primaryKey;size:32"`
	LastCommittedBlock uint64 `gorm:"NOT NULL"`
}

func (*Watermark) TableName() string {
	return "watermark"
}
