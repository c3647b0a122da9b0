package transfer

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"todo-app/internal/model"
	"todo-app/internal/state"
)

var testNow = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func TestExportThenImport(t *testing.T) {
	doneAt := testNow.Add(-time.Hour)
	user := model.DefaultUser("u1", testNow)
	user.Tasks = []model.Task{
		{ID: "t1", Name: "Read", CreatedAt: testNow},
		{ID: "t2", Name: "Run", Done: true, DoneAt: &doneAt, CategoryID: "c1", CreatedAt: testNow},
	}
	user.Categories = []model.Category{{ID: "c1", Name: "Health", Color: "#00ff00"}}

	data, err := Export(user, testNow)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("exported file is not JSON: %v", err)
	}
	if doc.Version != FormatVersion || !doc.ExportedAt.Equal(testNow) {
		t.Errorf("header = %d %v", doc.Version, doc.ExportedAt)
	}

	intent, err := Import(data)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(intent.Tasks) != 2 || intent.Tasks[1].CategoryID != "c1" || !intent.Tasks[1].DoneAt.Equal(doneAt) {
		t.Errorf("tasks = %+v", intent.Tasks)
	}
	if len(intent.Categories) != 1 || intent.Categories[0] != user.Categories[0] {
		t.Errorf("categories = %+v", intent.Categories)
	}
}

func TestExportEmptyUserHasArrays(t *testing.T) {
	data, err := Export(&model.User{}, testNow)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(string(data), `"tasks": []`) || !strings.Contains(string(data), `"categories": []`) {
		t.Errorf("export = %s", data)
	}
}

func TestImportRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "not json", in: `tasks: []`},
		{name: "missing tasks", in: `{"categories": []}`},
		{name: "task without name", in: `{"tasks": [{"done": true}]}`},
		{name: "empty name", in: `{"tasks": [{"name": ""}]}`},
		{name: "bad date", in: `{"tasks": [{"name": "x", "deadline": "tomorrow"}]}`},
		{name: "long category", in: `{"tasks": [], "categories": [{"name": "` + strings.Repeat("c", 21) + `"}]}`},
		{name: "done not bool", in: `{"tasks": [{"name": "x", "done": "yes"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Import([]byte(tt.in)); !errors.Is(err, state.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestImportMinimalDocument(t *testing.T) {
	intent, err := Import([]byte(`{"tasks": [{"name": "Only a name", "deadline": null}]}`))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(intent.Tasks) != 1 || intent.Tasks[0].ID != "" || intent.Tasks[0].Deadline != nil {
		t.Errorf("tasks = %+v", intent.Tasks)
	}
}
