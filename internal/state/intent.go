package state

import (
	"time"

	"todo-app/internal/model"
)

// Kind identifies an intent type.
type Kind string

const (
	KindSetSetting          Kind = "set_setting"
	KindClearProfilePicture Kind = "clear_profile_picture"
	KindUpdateProfile       Kind = "update_profile"
	KindToggleTaskDone      Kind = "toggle_task_done"
	KindAddTask             Kind = "add_task"
	KindRemoveTask          Kind = "remove_task"
	KindAddCategory         Kind = "add_category"
	KindRemoveCategory      Kind = "remove_category"
	KindImportData          Kind = "import_data"
)

// Intent is a named request to change the user snapshot.
type Intent interface {
	Kind() Kind
}

// SetSetting replaces one field of the settings record.
type SetSetting struct {
	Key   model.SettingKey
	Value any
}

// ClearProfilePicture drops the profile picture. Cause, when set, is shown to the user.
type ClearProfilePicture struct {
	Cause string
}

// UpdateProfile replaces the display name and profile picture.
type UpdateProfile struct {
	Name           string
	ProfilePicture string
}

// ToggleTaskDone flips the done flag of a task.
type ToggleTaskDone struct {
	TaskID string
}

// TaskDraft is the user-provided part of a new task.
type TaskDraft struct {
	Name        string
	Description string
	CategoryID  string
	Deadline    *time.Time
}

// AddTask appends a task built from Draft.
type AddTask struct {
	Draft TaskDraft
}

// RemoveTask deletes a task.
type RemoveTask struct {
	TaskID string
}

// AddCategory appends a category. An empty Color picks the default one.
type AddCategory struct {
	Name  string
	Color string
}

// RemoveCategory deletes a category; tasks keep their reference.
type RemoveCategory struct {
	CategoryID string
}

// ImportData merges tasks and categories from an export.
type ImportData struct {
	Tasks      []model.Task
	Categories []model.Category
}

func (SetSetting) Kind() Kind          { return KindSetSetting }
func (ClearProfilePicture) Kind() Kind { return KindClearProfilePicture }
func (UpdateProfile) Kind() Kind       { return KindUpdateProfile }
func (ToggleTaskDone) Kind() Kind      { return KindToggleTaskDone }
func (AddTask) Kind() Kind             { return KindAddTask }
func (RemoveTask) Kind() Kind          { return KindRemoveTask }
func (AddCategory) Kind() Kind         { return KindAddCategory }
func (RemoveCategory) Kind() Kind      { return KindRemoveCategory }
func (ImportData) Kind() Kind          { return KindImportData }
