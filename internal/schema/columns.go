package schema

import (
	"bytes"
	"encoding/json"
	"strings"

	"tablestore/internal/domain"
)

const defaultWidth = 180

// OptionsInput is the caller-facing form of domain.ColumnOptions.
type OptionsInput struct {
	Choices            []ChoiceInput `json:"choices,omitempty"`
	DateFormat         string        `json:"dateFormat,omitempty"`
	NumberFormat       string        `json:"numberFormat,omitempty"`
	RelationDatabaseID string        `json:"relationDatabaseId,omitempty"`
	Formula            string        `json:"formula,omitempty"`
}

// UnmarshalJSON accepts either the options object or a bare array of
// choices, which is shorthand for {"choices": [...]}.
func (o *OptionsInput) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var choices []ChoiceInput
		if err := json.Unmarshal(trimmed, &choices); err != nil {
			return err
		}
		*o = OptionsInput{Choices: choices}
		return nil
	}
	type plain OptionsInput
	return json.Unmarshal(data, (*plain)(o))
}

// ColumnInput describes a column to create.
type ColumnInput struct {
	Name     string            `json:"name"`
	Type     domain.ColumnType `json:"type"`
	Options  *OptionsInput     `json:"options,omitempty"`
	Visible  *bool             `json:"visible,omitempty"`
	Required bool              `json:"required,omitempty"`
	Readonly bool              `json:"readonly,omitempty"`
	Width    int               `json:"width,omitempty"`
	Color    string            `json:"color,omitempty"`
}

// BuildColumn validates in and produces a column with the given id and order.
func BuildColumn(id string, in ColumnInput, order int) (domain.Column, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Column{}, domain.Validation("column name is required")
	}
	if !in.Type.Valid() {
		return domain.Column{}, domain.Validation("unknown column type %q", in.Type)
	}
	opts, err := BuildOptions(in.Type, in.Options)
	if err != nil {
		return domain.Column{}, err
	}
	visible := true
	if in.Visible != nil {
		visible = *in.Visible
	}
	width := in.Width
	if width <= 0 {
		width = defaultWidth
	}
	return domain.Column{
		ID:       id,
		Name:     name,
		Type:     in.Type,
		Visible:  visible,
		Order:    order,
		Required: in.Required,
		Readonly: in.Readonly || in.Type.Computed(),
		Width:    width,
		Color:    in.Color,
		Options:  opts,
	}, nil
}

// BuildOptions normalizes options for a column of type t. Choices are only
// kept for select and multi-select columns.
func BuildOptions(t domain.ColumnType, in *OptionsInput) (*domain.ColumnOptions, error) {
	if in == nil {
		if t.HasChoices() {
			return &domain.ColumnOptions{Choices: []domain.Choice{}}, nil
		}
		return nil, nil
	}
	opts := &domain.ColumnOptions{
		DateFormat:         in.DateFormat,
		NumberFormat:       in.NumberFormat,
		RelationDatabaseID: in.RelationDatabaseID,
		Formula:            in.Formula,
	}
	if t.HasChoices() {
		cs, err := NormalizeChoices(in.Choices)
		if err != nil {
			return nil, err
		}
		opts.Choices = cs
	} else if len(in.Choices) > 0 {
		return nil, domain.Validation("choices are only valid on select and multi-select columns")
	}
	return opts, nil
}

// CheckUniqueNames fails when two columns share a name.
func CheckUniqueNames(cols []domain.Column) error {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if seen[c.Name] {
			return domain.Validation("duplicate column name %q", c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}
