package model

import "time"

const (
	TaskNameMaxLength        = 40
	TaskDescriptionMaxLength = 350
)

// Task represents a single item in the todo list.
type Task struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Done        bool       `json:"done"`
	CategoryID  string     `json:"category,omitempty"` // weak reference, may dangle
	Deadline    *time.Time `json:"deadline,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	DoneAt      *time.Time `json:"doneAt,omitempty"`
}

// repairDoneAt enforces DoneAt != nil iff Done.
func (t *Task) repairDoneAt(fallback time.Time) {
	switch {
	case t.Done && t.DoneAt == nil:
		at := t.CreatedAt
		if at.IsZero() {
			at = fallback
		}
		t.DoneAt = &at
	case !t.Done:
		t.DoneAt = nil
	}
}
