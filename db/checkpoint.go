package db

// ReviewCheckpointId is the fixed id of the singleton checkpoint row.
const ReviewCheckpointId = 0

// ReviewCheckpoint marks the event id boundary below which dead-end reports
// are considered already triaged by an operator. Advanced only through the
// operator API.
type ReviewCheckpoint struct {
	Id                  int64 `gorm:"primaryKey"`
	LastReviewedEventId int64 `gorm:"NOT NULL"`
}

func (*ReviewCheckpoint) TableName() string {
	return "review_checkpoint"
}
