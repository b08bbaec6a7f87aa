package domain

import "time"

// User represents a person managed through the admin console.
type User struct {
	ID          int64
	Forename    string `validate:"notblank"`
	Surname     string `validate:"notblank"`
	Email       string `validate:"notblank"`
	IsActive    bool
	DateOfBirth *time.Time
}

func (u User) EntityID() int64 { return u.ID }

func (u User) WithID(id int64) User {
	u.ID = id
	return u
}

// Validate reports missing required fields as a *ValidationError.
func (u User) Validate() error {
	return validateStruct(u)
}

func (u User) FullName() string {
	return u.Forename + " " + u.Surname
}
