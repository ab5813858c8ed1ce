package db

import (
	"encoding/json"
	"time"
)

// TransferPayload is the application-level event a bridge transfer emits via
// console output. Field content is controlled by users, not by us.
type TransferPayload struct {
	TransferId       string `json:"transfer_id"`
	From             string `json:"from"`
	TargetBlockchain string `json:"target_blockchain"`
	TargetAccount    string `json:"target_account"`
	Quantity         string `json:"quantity"`
}

func (p TransferPayload) Empty() bool {
	return p == TransferPayload{}
}

// Event is one append-only ledger row per observed transfer action.
type Event struct {
	Id             int64  `gorm:"primaryKey;autoIncrement"`
	Network        string `gorm:"NOT NULL;uniqueIndex:idx_event_network_seq;size:32"`
	BlockNumber    uint64 `gorm:"NOT NULL"`
	Timestamp      time.Time
	TransactionId  string `gorm:"NOT NULL;size:64"`
	GlobalSequence uint64 `gorm:"NOT NULL;uniqueIndex:idx_event_network_seq"`
	EventVersion   string `gorm:"size:16"`
	EventType      string `gorm:"size:32"`
	EventPayload   string `gorm:"type:text"` // JSON, empty when no parsable application event was found
	ActionData     string `gorm:"type:text"` // raw action payload as JSON
	ConsoleOutput  string `gorm:"type:text"`
}

func (*Event) TableName() string {
	return "event"
}

// Payload parses the stored application event. A missing or malformed payload
// yields the zero value, which the reporter classifies as a broken event.
func (e *Event) Payload() TransferPayload {
	var p TransferPayload
	if e.EventPayload == "" {
		return p
	}
	if err := json.Unmarshal([]byte(e.EventPayload), &p); err != nil {
		return TransferPayload{}
	}
	return p
}

// Broken reports whether the event lacks a usable application payload and can
// never be settled automatically.
func (e *Event) Broken() bool {
	return e.EventVersion == "" || e.EventType == "" || e.Payload().Empty()
}
