// Package transfer converts user data to and from the JSON export format.
package transfer

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"todo-app/internal/model"
	"todo-app/internal/state"
)

const (
	FormatVersion = 1
	schemaURL     = "export.schema.json"
)

//go:embed export.schema.json
var schemaSource string

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(schemaURL, strings.NewReader(schemaSource)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
})

// Document is the exported file layout.
type Document struct {
	Version    int              `json:"version"`
	ExportedAt time.Time        `json:"exportedAt"`
	Tasks      []model.Task     `json:"tasks"`
	Categories []model.Category `json:"categories"`
}

// Export renders the user's tasks and categories as indented JSON.
func Export(user *model.User, now time.Time) ([]byte, error) {
	doc := Document{
		Version:    FormatVersion,
		ExportedAt: now.UTC(),
		Tasks:      user.Tasks,
		Categories: user.Categories,
	}
	if doc.Tasks == nil {
		doc.Tasks = []model.Task{}
	}
	if doc.Categories == nil {
		doc.Categories = []model.Category{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}

// Import validates data against the export schema and turns it into an intent.
// Malformed input is reported as state.ErrValidation.
func Import(data []byte) (state.ImportData, error) {
	schema, err := compileSchema()
	if err != nil {
		return state.ImportData{}, err
	}

	raw, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return state.ImportData{}, fmt.Errorf("%w: file is not JSON: %v", state.ErrValidation, err)
	}
	if err := schema.Validate(raw); err != nil {
		return state.ImportData{}, fmt.Errorf("%w: %s", state.ErrValidation, describe(err))
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return state.ImportData{}, fmt.Errorf("%w: %v", state.ErrValidation, err)
	}
	return state.ImportData{Tasks: doc.Tasks, Categories: doc.Categories}, nil
}

// describe picks the deepest schema error, which names the offending field.
func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	if ve.InstanceLocation == "" {
		return ve.Message
	}
	return fmt.Sprintf("%s: %s", ve.InstanceLocation, ve.Message)
}
