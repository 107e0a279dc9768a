package models

import (
	"time"

	"github.com/google/uuid"
)

// DisputeStatus is the lifecycle state of a transaction dispute.
type DisputeStatus string

const (
	DisputeStatusOpen          DisputeStatus = "open"
	DisputeStatusInvestigating DisputeStatus = "investigating"
	DisputeStatusResolved      DisputeStatus = "resolved"
	DisputeStatusRejected      DisputeStatus = "rejected"
)

// DisputeWindow is how long after completion a transaction can be disputed.
const DisputeWindow = 30 * 24 * time.Hour

// DisputeDB references a completed ledger transaction under dispute.
// Opening a dispute never mutates the transaction itself.
type DisputeDB struct {
	DisputeID     uuid.UUID     `json:"dispute_id" db:"dispute_id"`
	TransactionID uuid.UUID     `json:"transaction_id" db:"transaction_id"`
	OpenedBy      uuid.UUID     `json:"opened_by" db:"opened_by"`
	Status        DisputeStatus `json:"status" db:"status"`
	Reason        string        `json:"reason" db:"reason"`
	Resolution    *string       `json:"resolution,omitempty" db:"resolution"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
}
