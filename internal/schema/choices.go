// Package schema holds the pure, storage-free rules of a database schema:
// column construction, select choices, the task/event templates and the
// mapper between name-keyed and id-keyed cells.
package schema

import (
	"strings"

	"tablestore/internal/domain"
)

// palette is cycled through for choices supplied without a color.
var palette = []string{"gray", "blue", "green", "yellow", "orange", "red", "purple", "pink"}

// ChoiceInput is a caller-supplied choice; ID and Color are optional.
type ChoiceInput struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label"`
	Color string `json:"color,omitempty"`
}

// Slug derives a choice id from its label: lowercased, spaces → underscore.
func Slug(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "_")
}

// NormalizeChoices turns {label, color?} pairs into {id, label, color} choices.
func NormalizeChoices(in []ChoiceInput) ([]domain.Choice, error) {
	out := make([]domain.Choice, 0, len(in))
	seen := make(map[string]bool, len(in))
	for i, c := range in {
		label := strings.TrimSpace(c.Label)
		if label == "" {
			return nil, domain.Validation("choice %d has an empty label", i)
		}
		id := c.ID
		if id == "" {
			id = Slug(label)
		}
		if seen[id] {
			return nil, domain.Validation("duplicate choice id %q", id)
		}
		seen[id] = true
		color := c.Color
		if color == "" {
			color = palette[i%len(palette)]
		}
		out = append(out, domain.Choice{ID: id, Label: label, Color: color})
	}
	return out, nil
}

// choices is a template helper; labels are trusted to be unique.
func choices(labels ...string) []domain.Choice {
	in := make([]ChoiceInput, len(labels))
	for i, l := range labels {
		in[i] = ChoiceInput{Label: l}
	}
	out, _ := NormalizeChoices(in)
	return out
}
