package domain

import "time"

// Audit actions recorded for user mutations.
const (
	ActionCreated = "Created"
	ActionUpdated = "Updated"
	ActionDeleted = "Deleted"
)

// LogEntry is an immutable audit record. UserID may reference a user that no
// longer exists.
type LogEntry struct {
	ID        int64
	UserID    *int64
	Action    string `validate:"notblank,max=64"`
	Details   string
	Timestamp time.Time
}

func (l LogEntry) EntityID() int64 { return l.ID }

func (l LogEntry) WithID(id int64) LogEntry {
	l.ID = id
	return l
}

func (l LogEntry) Validate() error {
	return validateStruct(l)
}

// BelongsTo reports whether the entry references the given user.
func (l LogEntry) BelongsTo(userID int64) bool {
	return l.UserID != nil && *l.UserID == userID
}
