package model

import "time"

// User is one immutable snapshot of the application state for the single local user.
// Name and ProfilePicture are optional; the empty string means "not set".
// Settings always holds exactly one record.
type User struct {
	ID             string        `json:"id"`
	Name           string        `json:"name,omitempty"`
	ProfilePicture string        `json:"profilePicture,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	Tasks          []Task        `json:"tasks"`
	Categories     []Category    `json:"categories"`
	Settings       []AppSettings `json:"settings"`
}

// DefaultUser builds the user a fresh session starts with.
func DefaultUser(id string, now time.Time) *User {
	return &User{
		ID:         id,
		CreatedAt:  now,
		Tasks:      []Task{},
		Categories: []Category{},
		Settings:   []AppSettings{DefaultSettings()},
	}
}

// AppSettings returns the settings record, falling back to defaults when the
// one-element invariant does not hold.
func (u *User) AppSettings() AppSettings {
	if u == nil || len(u.Settings) == 0 {
		return DefaultSettings()
	}
	return u.Settings[0]
}

// Normalize repairs data coming from outside the container (storage, imports):
// nil slices become empty and Settings is forced to exactly one record.
func (u *User) Normalize() {
	if u.Tasks == nil {
		u.Tasks = []Task{}
	}
	if u.Categories == nil {
		u.Categories = []Category{}
	}
	if len(u.Settings) != 1 {
		u.Settings = []AppSettings{u.AppSettings()}
	}
	for i := range u.Tasks {
		u.Tasks[i].repairDoneAt(u.CreatedAt)
	}
}

// TaskIndex returns the position of the task with the given id or -1.
func (u *User) TaskIndex(id string) int {
	for i := range u.Tasks {
		if u.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// CategoryIndex returns the position of the category with the given id or -1.
func (u *User) CategoryIndex(id string) int {
	for i := range u.Categories {
		if u.Categories[i].ID == id {
			return i
		}
	}
	return -1
}
