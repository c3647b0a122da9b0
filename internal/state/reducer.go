package state

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"todo-app/internal/model"
)

// Env carries the non-deterministic inputs reducers need.
type Env struct {
	Now   func() time.Time
	NewID func() string
}

// DefaultEnv uses the wall clock and random UUIDs.
func DefaultEnv() Env {
	return Env{Now: time.Now, NewID: uuid.NewString}
}

func (e Env) withDefaults() Env {
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.NewID == nil {
		e.NewID = uuid.NewString
	}
	return e
}

// Outcome is what a reducer produces: the next snapshot plus out-of-band data.
type Outcome struct {
	User      *model.User
	Effects   []Effect
	CreatedID string
	Imported  int
}

// Reducer computes the next snapshot. It must not mutate user and must not
// perform I/O; side effects are requested through Outcome.Effects.
type Reducer func(env Env, user *model.User, intent Intent) (Outcome, error)

// Reducers returns the built-in reducer table.
func Reducers() map[Kind]Reducer {
	return map[Kind]Reducer{
		KindSetSetting:          reduceSetSetting,
		KindClearProfilePicture: reduceClearProfilePicture,
		KindUpdateProfile:       reduceUpdateProfile,
		KindToggleTaskDone:      reduceToggleTaskDone,
		KindAddTask:             reduceAddTask,
		KindRemoveTask:          reduceRemoveTask,
		KindAddCategory:         reduceAddCategory,
		KindRemoveCategory:      reduceRemoveCategory,
		KindImportData:          reduceImportData,
	}
}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func mismatch(intent Intent) error {
	return fmt.Errorf("%w: %T does not match kind %q", ErrInvalidIntent, intent, intent.Kind())
}

func reduceSetSetting(_ Env, user *model.User, intent Intent) (Outcome, error) {
	in, ok := intent.(SetSetting)
	if !ok {
		return Outcome{User: user}, mismatch(intent)
	}

	prev := user.AppSettings()
	settings, err := prev.With(in.Key, in.Value)
	if err != nil {
		return Outcome{User: user}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	next := *user
	next.Settings = []model.AppSettings{settings}

	out := Outcome{User: &next}
	if in.Key == model.SettingEnableReadAloud && prev.EnableReadAloud && !settings.EnableReadAloud {
		out.Effects = append(out.Effects, Effect{Kind: EffectCancelSpeech})
	}
	return out, nil
}

func reduceClearProfilePicture(_ Env, user *model.User, intent Intent) (Outcome, error) {
	in, ok := intent.(ClearProfilePicture)
	if !ok {
		return Outcome{User: user}, mismatch(intent)
	}

	out := Outcome{User: user}
	if user.ProfilePicture != "" {
		next := *user
		next.ProfilePicture = ""
		out.User = &next
	}
	if in.Cause != "" {
		out.Effects = append(out.Effects, notify(in.Cause))
	}
	return out, nil
}

func reduceUpdateProfile(_ Env, user *model.User, intent Intent) (Outcome, error) {
	in, ok := intent.(UpdateProfile)
	if !ok {
		return Outcome{User: user}, mismatch(intent)
	}

	picture := strings.TrimSpace(in.ProfilePicture)
	if picture != "" && !validPictureURL(picture) {
		return Outcome{User: user}, fmt.Errorf("%w: profile picture must be an http(s) or data URL", ErrValidation)
	}

	next := *user
	next.Name = strings.TrimSpace(in.Name)
	next.ProfilePicture = picture
	return Outcome{User: &next}, nil
}

func validPictureURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https":
		return u.Host != ""
	case "data":
		return strings.HasPrefix(u.Opaque, "image/")
	default:
		return false
	}
}

func reduceToggleTaskDone(env Env, user *model.User, intent Intent) (Outcome, error) {
	in, ok := intent.(ToggleTaskDone)
	if !ok {
		return Outcome{User: user}, mismatch(intent)
	}

	idx := user.TaskIndex(in.TaskID)
	if idx < 0 {
		return Outcome{User: user}, fmt.Errorf("%w: task %q", ErrNotFound, in.TaskID)
	}

	tasks := slices.Clone(user.Tasks)
	task := &tasks[idx]
	task.Done = !task.Done
	if task.Done {
		now := env.Now()
		task.DoneAt = &now
	} else {
		task.DoneAt = nil
	}

	next := *user
	next.Tasks = tasks
	return Outcome{User: &next}, nil
}

func reduceAddTask(env Env, user *model.User, intent Intent) (Outcome, error) {
	in, ok := intent.(AddTask)
	if !ok {
		return Outcome{User: user}, mismatch(intent)
	}

	name := strings.TrimSpace(in.Draft.Name)
	description := strings.TrimSpace(in.Draft.Description)
	switch {
	case name == "":
		return Outcome{User: user}, fmt.Errorf("%w: task name is required", ErrValidation)
	case utf8.RuneCountInString(name) > model.TaskNameMaxLength:
		return Outcome{User: user}, fmt.Errorf("%w: task name is longer than %d characters", ErrValidation, model.TaskNameMaxLength)
	case utf8.RuneCountInString(description) > model.TaskDescriptionMaxLength:
		return Outcome{User: user}, fmt.Errorf("%w: task description is longer than %d characters", ErrValidation, model.TaskDescriptionMaxLength)
	}

	task := model.Task{
		ID:          freshID(env, func(id string) bool { return user.TaskIndex(id) >= 0 }),
		Name:        name,
		Description: description,
		CategoryID:  in.Draft.CategoryID,
		Deadline:    in.Draft.Deadline,
		CreatedAt:   env.Now(),
	}

	next := *user
	next.Tasks = append(slices.Clip(user.Tasks), task)
	return Outcome{User: &next, CreatedID: task.ID}, nil
}

func reduceRemoveTask(_ Env, user *model.User, intent Intent) (Outcome, error) {
	in, ok := intent.(RemoveTask)
	if !ok {
		return Outcome{User: user}, mismatch(intent)
	}

	idx := user.TaskIndex(in.TaskID)
	if idx < 0 {
		return Outcome{User: user}, fmt.Errorf("%w: task %q", ErrNotFound, in.TaskID)
	}

	next := *user
	next.Tasks = slices.Delete(slices.Clone(user.Tasks), idx, idx+1)
	return Outcome{User: &next}, nil
}

func reduceAddCategory(env Env, user *model.User, intent Intent) (Outcome, error) {
	in, ok := intent.(AddCategory)
	if !ok {
		return Outcome{User: user}, mismatch(intent)
	}

	name := strings.TrimSpace(in.Name)
	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = model.DefaultCategoryColor
	}
	switch {
	case name == "":
		return Outcome{User: user}, fmt.Errorf("%w: category name is required", ErrValidation)
	case utf8.RuneCountInString(name) > model.CategoryNameMaxLength:
		return Outcome{User: user}, fmt.Errorf("%w: category name is longer than %d characters", ErrValidation, model.CategoryNameMaxLength)
	case !colorPattern.MatchString(color):
		return Outcome{User: user}, fmt.Errorf("%w: color %q is not #rrggbb", ErrValidation, color)
	}
	for _, c := range user.Categories {
		if strings.EqualFold(c.Name, name) {
			return Outcome{User: user}, fmt.Errorf("%w: category %q already exists", ErrValidation, name)
		}
	}

	category := model.Category{
		ID:    freshID(env, func(id string) bool { return user.CategoryIndex(id) >= 0 }),
		Name:  name,
		Color: color,
	}

	next := *user
	next.Categories = append(slices.Clip(user.Categories), category)
	return Outcome{User: &next, CreatedID: category.ID}, nil
}

func reduceRemoveCategory(_ Env, user *model.User, intent Intent) (Outcome, error) {
	in, ok := intent.(RemoveCategory)
	if !ok {
		return Outcome{User: user}, mismatch(intent)
	}

	idx := user.CategoryIndex(in.CategoryID)
	if idx < 0 {
		return Outcome{User: user}, fmt.Errorf("%w: category %q", ErrNotFound, in.CategoryID)
	}

	next := *user
	next.Categories = slices.Delete(slices.Clone(user.Categories), idx, idx+1)
	return Outcome{User: &next}, nil
}

// reduceImportData merges imported items into the snapshot. Items whose id is
// already present are skipped. An imported category named like an existing one
// (ignoring case) is merged into it and its tasks are moved over.
func reduceImportData(env Env, user *model.User, intent Intent) (Outcome, error) {
	in, ok := intent.(ImportData)
	if !ok {
		return Outcome{User: user}, mismatch(intent)
	}

	for i, t := range in.Tasks {
		name := strings.TrimSpace(t.Name)
		switch {
		case name == "":
			return Outcome{User: user}, fmt.Errorf("%w: imported task %d has no name", ErrValidation, i+1)
		case utf8.RuneCountInString(name) > model.TaskNameMaxLength:
			return Outcome{User: user}, fmt.Errorf("%w: imported task %d name is longer than %d characters", ErrValidation, i+1, model.TaskNameMaxLength)
		case utf8.RuneCountInString(strings.TrimSpace(t.Description)) > model.TaskDescriptionMaxLength:
			return Outcome{User: user}, fmt.Errorf("%w: imported task %d description is longer than %d characters", ErrValidation, i+1, model.TaskDescriptionMaxLength)
		}
	}
	for i, c := range in.Categories {
		name := strings.TrimSpace(c.Name)
		switch {
		case name == "":
			return Outcome{User: user}, fmt.Errorf("%w: imported category %d has no name", ErrValidation, i+1)
		case utf8.RuneCountInString(name) > model.CategoryNameMaxLength:
			return Outcome{User: user}, fmt.Errorf("%w: imported category %d name is longer than %d characters", ErrValidation, i+1, model.CategoryNameMaxLength)
		}
	}

	now := env.Now()
	categories := slices.Clip(user.Categories)
	seenCategories := make(map[string]bool, len(categories))
	byName := make(map[string]string, len(categories))
	for _, c := range categories {
		seenCategories[c.ID] = true
		if _, ok := byName[strings.ToLower(c.Name)]; !ok {
			byName[strings.ToLower(c.Name)] = c.ID
		}
	}
	merged := make(map[string]string)
	for _, c := range in.Categories {
		if c.ID != "" && seenCategories[c.ID] {
			continue
		}
		c.Name = strings.TrimSpace(c.Name)
		key := strings.ToLower(c.Name)
		if id, ok := byName[key]; ok {
			if c.ID != "" {
				merged[c.ID] = id
			}
			continue
		}
		if c.ID == "" {
			c.ID = freshID(env, func(id string) bool { return seenCategories[id] })
		}
		if !colorPattern.MatchString(c.Color) {
			c.Color = model.DefaultCategoryColor
		}
		seenCategories[c.ID] = true
		byName[key] = c.ID
		categories = append(categories, c)
	}

	tasks := slices.Clip(user.Tasks)
	seenTasks := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		seenTasks[t.ID] = true
	}
	imported := 0
	for _, t := range in.Tasks {
		if t.ID == "" {
			t.ID = freshID(env, func(id string) bool { return seenTasks[id] })
		}
		if seenTasks[t.ID] {
			continue
		}
		t.Name = strings.TrimSpace(t.Name)
		t.Description = strings.TrimSpace(t.Description)
		if id, ok := merged[t.CategoryID]; ok {
			t.CategoryID = id
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		switch {
		case t.Done && t.DoneAt == nil:
			at := now
			t.DoneAt = &at
		case !t.Done:
			t.DoneAt = nil
		}
		seenTasks[t.ID] = true
		tasks = append(tasks, t)
		imported++
	}

	next := *user
	next.Tasks = tasks
	next.Categories = categories
	return Outcome{User: &next, Imported: imported}, nil
}

// freshID draws ids until one is not taken.
func freshID(env Env, taken func(string) bool) string {
	for {
		id := env.NewID()
		if !taken(id) {
			return id
		}
	}
}
