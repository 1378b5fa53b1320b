package domain

import "time"

type Type string

const (
	TypeProject Type = "project"
	TypeTask    Type = "task"
	TypeInvoice Type = "invoice"
	TypeTime    Type = "time"
	TypeClient  Type = "client"
	TypeSystem  Type = "system"
)

type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionDeleted   Action = "deleted"
	ActionCompleted Action = "completed"
	ActionSent      Action = "sent"
	ActionStarted   Action = "started"
	ActionStopped   Action = "stopped"
	ActionApproved  Action = "approved"
	ActionMigration Action = "migration"
)

// Entry is one append-only audit record. Entries are never updated or deleted.
type Entry struct {
	ID          string    `json:"id" firestore:"id"`
	OwnerID     string    `json:"ownerId" firestore:"ownerId"`
	Timestamp   time.Time `json:"timestamp" firestore:"timestamp"`
	Type        Type      `json:"type" firestore:"type"`
	Action      Action    `json:"action" firestore:"action"`
	Description string    `json:"description" firestore:"description"`
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)
