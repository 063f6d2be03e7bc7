package models

import (
	"time"
)

// Task is the only persisted entity. Slug is derived from Name on every write.
type Task struct {
	ID             uint64     `gorm:"primarykey" json:"id"`
	Name           string     `gorm:"type:varchar(100);not null" json:"name"`
	Description    string     `gorm:"type:text;not null" json:"description"`
	Slug           string     `gorm:"type:varchar(120);uniqueIndex;not null" json:"slug"`
	Done           *bool      `json:"done"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompleteBefore *time.Time `json:"complete_before"`
}

// IsDone reports the completion flag, treating unset as false.
func (t *Task) IsDone() bool {
	return t.Done != nil && *t.Done
}

// ToggleDone flips the completion flag. An unset flag becomes true.
func (t *Task) ToggleDone() {
	next := !t.IsDone()
	t.Done = &next
}
