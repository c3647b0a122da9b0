package state

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"todo-app/internal/model"
)

var testNow = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func testEnv() Env {
	n := 0
	return Env{
		Now: func() time.Time { return testNow },
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	}
}

func sampleUser() *model.User {
	created := testNow.Add(-48 * time.Hour)
	doneAt := testNow.Add(-time.Hour)
	return &model.User{
		ID:             "user-1",
		Name:           "ada",
		ProfilePicture: "https://example.com/ada.png",
		CreatedAt:      created,
		Tasks: []model.Task{
			{ID: "t1", Name: "Buy milk", CreatedAt: created},
			{ID: "t2", Name: "Write report", Done: true, DoneAt: &doneAt, CategoryID: "c1", CreatedAt: created},
			{ID: "t3", Name: "Call mom", CategoryID: "missing", CreatedAt: created},
		},
		Categories: []model.Category{
			{ID: "c1", Name: "Work", Color: "#1e90ff"},
			{ID: "c2", Name: "Home", Color: "#ff8c00"},
		},
		Settings: []model.AppSettings{model.DefaultSettings()},
	}
}

func reduce(t *testing.T, user *model.User, intent Intent) Outcome {
	t.Helper()
	reducer, ok := Reducers()[intent.Kind()]
	if !ok {
		t.Fatalf("no reducer for %s", intent.Kind())
	}
	out, err := reducer(testEnv(), user, intent)
	if err != nil {
		t.Fatalf("%s: %v", intent.Kind(), err)
	}
	return out
}

func TestSetSettingChangesOnlyThatKey(t *testing.T) {
	cases := []struct {
		key   model.SettingKey
		value any
	}{
		{model.SettingEnableCategories, false},
		{model.SettingDoneToBottom, true},
		{model.SettingEnableGlow, false},
		{model.SettingSimpleEmojiPicker, true},
		{model.SettingEnableReadAloud, false},
		{model.SettingAppBadge, true},
		{model.SettingVoice, "Samantha::en-US"},
		{model.SettingVoiceVolume, 0.9},
	}

	for _, tc := range cases {
		t.Run(string(tc.key), func(t *testing.T) {
			user := sampleUser()
			before := sampleUser()

			out := reduce(t, user, SetSetting{Key: tc.key, Value: tc.value})

			got, err := out.User.Settings[0].Get(tc.key)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got != tc.value {
				t.Errorf("%s = %v, want %v", tc.key, got, tc.value)
			}
			if len(out.User.Settings) != 1 {
				t.Errorf("settings length = %d, want 1", len(out.User.Settings))
			}

			// Every other settings field is untouched.
			for _, other := range append(append([]model.SettingKey{}, model.ToggleKeys...), model.SettingVoice, model.SettingVoiceVolume) {
				if other == tc.key {
					continue
				}
				a, _ := out.User.Settings[0].Get(other)
				b, _ := before.Settings[0].Get(other)
				if a != b {
					t.Errorf("%s changed from %v to %v", other, b, a)
				}
			}

			// The rest of the user is structurally equal and shared.
			rest := *out.User
			rest.Settings = before.Settings
			if !reflect.DeepEqual(&rest, before) {
				t.Errorf("user changed outside settings:\n got %+v\nwant %+v", rest, *before)
			}
			if &out.User.Tasks[0] != &user.Tasks[0] {
				t.Error("tasks slice was copied, want shared")
			}
			if &out.User.Categories[0] != &user.Categories[0] {
				t.Error("categories slice was copied, want shared")
			}
			if !reflect.DeepEqual(user, before) {
				t.Error("input snapshot was mutated")
			}
		})
	}
}

func TestSetSettingReadAloudOffCancelsSpeech(t *testing.T) {
	user := sampleUser()

	out := reduce(t, user, SetSetting{Key: model.SettingEnableReadAloud, Value: false})
	if len(out.Effects) != 1 || out.Effects[0].Kind != EffectCancelSpeech {
		t.Fatalf("effects = %+v, want one cancel speech", out.Effects)
	}

	again := reduce(t, out.User, SetSetting{Key: model.SettingEnableReadAloud, Value: false})
	if len(again.Effects) != 0 {
		t.Errorf("no transition should not cancel, got %+v", again.Effects)
	}

	on := reduce(t, out.User, SetSetting{Key: model.SettingEnableReadAloud, Value: true})
	if len(on.Effects) != 0 {
		t.Errorf("turning read aloud on should not cancel, got %+v", on.Effects)
	}

	other := reduce(t, user, SetSetting{Key: model.SettingEnableGlow, Value: false})
	if len(other.Effects) != 0 {
		t.Errorf("unrelated key produced effects: %+v", other.Effects)
	}
}

func TestSetSettingRejectsBadValues(t *testing.T) {
	user := sampleUser()
	tests := []struct {
		name   string
		intent SetSetting
	}{
		{name: "unknown key", intent: SetSetting{Key: "theme", Value: "dark"}},
		{name: "wrong type", intent: SetSetting{Key: model.SettingEnableGlow, Value: 1}},
		{name: "volume too loud", intent: SetSetting{Key: model.SettingVoiceVolume, Value: 2.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := reduceSetSetting(testEnv(), user, tt.intent)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			if out.User != user {
				t.Error("failed reducer must return the unchanged snapshot")
			}
		})
	}
}

func TestClearProfilePictureIsIdempotent(t *testing.T) {
	user := sampleUser()

	once := reduce(t, user, ClearProfilePicture{})
	if once.User.ProfilePicture != "" {
		t.Fatalf("picture = %q, want empty", once.User.ProfilePicture)
	}
	if user.ProfilePicture == "" {
		t.Fatal("input snapshot was mutated")
	}

	twice := reduce(t, once.User, ClearProfilePicture{})
	if twice.User != once.User {
		t.Error("second clear should return the same snapshot")
	}
	if !reflect.DeepEqual(twice.User, once.User) {
		t.Error("second clear changed the snapshot")
	}
}

func TestClearProfilePictureNotifiesCause(t *testing.T) {
	out := reduce(t, sampleUser(), ClearProfilePicture{Cause: "Error in profile picture URL"})
	want := []Effect{{Kind: EffectNotify, Message: "Error in profile picture URL"}}
	if !reflect.DeepEqual(out.Effects, want) {
		t.Errorf("effects = %+v, want %+v", out.Effects, want)
	}
}

func TestUpdateProfile(t *testing.T) {
	user := sampleUser()

	out := reduce(t, user, UpdateProfile{Name: "  Grace ", ProfilePicture: "data:image/png;base64,AAAA"})
	if out.User.Name != "Grace" {
		t.Errorf("name = %q, want Grace", out.User.Name)
	}
	if out.User.ProfilePicture != "data:image/png;base64,AAAA" {
		t.Errorf("picture = %q", out.User.ProfilePicture)
	}

	for _, bad := range []string{"ftp://example.com/a.png", "not a url", "https://", "data:text/plain,hi"} {
		if _, err := reduceUpdateProfile(testEnv(), user, UpdateProfile{Name: "x", ProfilePicture: bad}); !errors.Is(err, ErrValidation) {
			t.Errorf("picture %q: err = %v, want ErrValidation", bad, err)
		}
	}
}

func TestToggleTaskDoneTwiceRoundTrips(t *testing.T) {
	user := sampleUser()

	once := reduce(t, user, ToggleTaskDone{TaskID: "t1"})
	task := once.User.Tasks[0]
	if !task.Done || task.DoneAt == nil || !task.DoneAt.Equal(testNow) {
		t.Fatalf("after first toggle: %+v", task)
	}
	if user.Tasks[0].Done {
		t.Fatal("input snapshot was mutated")
	}

	twice := reduce(t, once.User, ToggleTaskDone{TaskID: "t1"})
	if !reflect.DeepEqual(twice.User, user) {
		t.Errorf("toggle twice did not round trip:\n got %+v\nwant %+v", twice.User.Tasks[0], user.Tasks[0])
	}
}

func TestToggleTaskDoneUnknownID(t *testing.T) {
	user := sampleUser()
	out, err := reduceToggleTaskDone(testEnv(), user, ToggleTaskDone{TaskID: "nope"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if out.User != user {
		t.Error("failed reducer must return the unchanged snapshot")
	}
}

func TestAddTask(t *testing.T) {
	user := sampleUser()
	deadline := testNow.Add(72 * time.Hour)

	out := reduce(t, user, AddTask{Draft: TaskDraft{Name: "  Water plants ", CategoryID: "c2", Deadline: &deadline}})

	if len(out.User.Tasks) != 4 {
		t.Fatalf("tasks = %d, want 4", len(out.User.Tasks))
	}
	added := out.User.Tasks[3]
	if added.ID != out.CreatedID || added.ID == "" {
		t.Errorf("created id = %q, task id = %q", out.CreatedID, added.ID)
	}
	if added.Name != "Water plants" || added.Done || added.DoneAt != nil || !added.CreatedAt.Equal(testNow) {
		t.Errorf("unexpected task %+v", added)
	}
	if len(user.Tasks) != 3 {
		t.Error("input snapshot was mutated")
	}
	for i := range user.Tasks {
		if out.User.Tasks[i].ID != user.Tasks[i].ID {
			t.Errorf("order changed at %d", i)
		}
	}
}

func TestAddTaskValidation(t *testing.T) {
	long := ""
	for i := 0; i <= model.TaskNameMaxLength; i++ {
		long += "x"
	}
	tests := []struct {
		name  string
		draft TaskDraft
	}{
		{name: "empty", draft: TaskDraft{Name: ""}},
		{name: "blank", draft: TaskDraft{Name: "   "}},
		{name: "too long", draft: TaskDraft{Name: long}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := sampleUser()
			out, err := reduceAddTask(testEnv(), user, AddTask{Draft: tt.draft})
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			if out.User != user {
				t.Error("failed reducer must return the unchanged snapshot")
			}
		})
	}
}

func TestAddTaskSkipsTakenIDs(t *testing.T) {
	user := sampleUser()
	ids := []string{"t1", "t2", "fresh"}
	env := Env{Now: func() time.Time { return testNow }, NewID: func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}}
	out, err := reduceAddTask(env, user, AddTask{Draft: TaskDraft{Name: "x"}})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if out.CreatedID != "fresh" {
		t.Errorf("created id = %q, want fresh", out.CreatedID)
	}
}

func TestRemoveTaskPreservesOrder(t *testing.T) {
	user := sampleUser()

	out := reduce(t, user, RemoveTask{TaskID: "t2"})
	var ids []string
	for _, task := range out.User.Tasks {
		ids = append(ids, task.ID)
	}
	if !reflect.DeepEqual(ids, []string{"t1", "t3"}) {
		t.Errorf("ids = %v", ids)
	}
	if len(user.Tasks) != 3 || user.Tasks[1].ID != "t2" {
		t.Error("input snapshot was mutated")
	}

	if _, err := reduceRemoveTask(testEnv(), user, RemoveTask{TaskID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAddCategory(t *testing.T) {
	user := sampleUser()

	out := reduce(t, user, AddCategory{Name: "Health"})
	added := out.User.Categories[len(out.User.Categories)-1]
	if added.Name != "Health" || added.Color != model.DefaultCategoryColor || added.ID != out.CreatedID {
		t.Errorf("unexpected category %+v (created %q)", added, out.CreatedID)
	}

	tests := []struct {
		name   string
		intent AddCategory
	}{
		{name: "empty", intent: AddCategory{Name: " "}},
		{name: "duplicate", intent: AddCategory{Name: "work"}},
		{name: "bad color", intent: AddCategory{Name: "Errands", Color: "red"}},
		{name: "too long", intent: AddCategory{Name: "a category name that is far too long"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := reduceAddCategory(testEnv(), user, tt.intent); !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestRemoveCategoryKeepsTaskReferences(t *testing.T) {
	user := sampleUser()

	out := reduce(t, user, RemoveCategory{CategoryID: "c1"})
	if len(out.User.Categories) != 1 || out.User.Categories[0].ID != "c2" {
		t.Errorf("categories = %+v", out.User.Categories)
	}
	if out.User.Tasks[1].CategoryID != "c1" {
		t.Error("task reference should be left dangling")
	}
	if _, err := reduceRemoveCategory(testEnv(), user, RemoveCategory{CategoryID: "c1x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestImportDataMergesNewItems(t *testing.T) {
	user := sampleUser()

	out := reduce(t, user, ImportData{
		Tasks: []model.Task{
			{ID: "t1", Name: "duplicate of existing"},
			{ID: "t9", Name: "Imported", Done: true},
			{Name: "No id"},
		},
		Categories: []model.Category{
			{ID: "c1", Name: "Work"},
			{ID: "c9", Name: "Garden", Color: "nope"},
		},
	})

	if out.Imported != 2 {
		t.Errorf("imported = %d, want 2", out.Imported)
	}
	if len(out.User.Tasks) != 5 {
		t.Fatalf("tasks = %d, want 5", len(out.User.Tasks))
	}
	imported := out.User.Tasks[3]
	if imported.ID != "t9" || imported.DoneAt == nil || imported.CreatedAt.IsZero() {
		t.Errorf("imported task not repaired: %+v", imported)
	}
	if out.User.Tasks[4].ID == "" {
		t.Error("task without id should get one")
	}
	if len(out.User.Categories) != 3 || out.User.Categories[2].Color != model.DefaultCategoryColor {
		t.Errorf("categories = %+v", out.User.Categories)
	}

	if _, err := reduceImportData(testEnv(), user, ImportData{Tasks: []model.Task{{ID: "x"}}}); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestImportDataEnforcesLimits(t *testing.T) {
	user := sampleUser()
	long := func(n int) string { return strings.Repeat("x", n+1) }

	tests := []struct {
		name string
		in   ImportData
	}{
		{"long task name", ImportData{Tasks: []model.Task{{Name: long(model.TaskNameMaxLength)}}}},
		{"long description", ImportData{Tasks: []model.Task{{Name: "ok", Description: long(model.TaskDescriptionMaxLength)}}}},
		{"long category name", ImportData{Categories: []model.Category{{Name: long(model.CategoryNameMaxLength)}}}},
		{"blank category name", ImportData{Categories: []model.Category{{Name: "  "}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := reduceImportData(testEnv(), user, tt.in)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			if out.User != user {
				t.Error("snapshot changed on rejected import")
			}
		})
	}
}

func TestImportDataMergesCategoriesByName(t *testing.T) {
	user := sampleUser()

	out := reduce(t, user, ImportData{
		Categories: []model.Category{
			{ID: "c7", Name: "work"},
			{ID: "c8", Name: "Garden"},
			{ID: "c9", Name: "GARDEN"},
		},
		Tasks: []model.Task{
			{ID: "t7", Name: "Prepare slides", CategoryID: "c7"},
			{ID: "t8", Name: "Plant tulips", CategoryID: "c9"},
		},
	})

	names := make(map[string]int)
	for _, c := range out.User.Categories {
		names[strings.ToLower(c.Name)]++
	}
	if names["work"] != 1 || names["garden"] != 1 || len(out.User.Categories) != 3 {
		t.Fatalf("categories = %+v", out.User.Categories)
	}
	if got := out.User.Tasks[3].CategoryID; got != "c1" {
		t.Errorf("task moved to %q, want existing Work category c1", got)
	}
	if got := out.User.Tasks[4].CategoryID; got != "c8" {
		t.Errorf("task moved to %q, want first imported Garden category c8", got)
	}
}

type fakeAddTask struct{}

func (fakeAddTask) Kind() Kind { return KindAddTask }

func TestReducerRejectsMismatchedIntentType(t *testing.T) {
	user := sampleUser()
	out, err := reduceAddTask(testEnv(), user, fakeAddTask{})
	if !errors.Is(err, ErrInvalidIntent) {
		t.Fatalf("err = %v, want ErrInvalidIntent", err)
	}
	if out.User != user {
		t.Error("failed reducer must return the unchanged snapshot")
	}
}
