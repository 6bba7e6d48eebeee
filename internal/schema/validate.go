package schema

import (
	"fmt"
	"sort"
	"strings"

	"tablestore/internal/domain"
)

// ValidateCells checks id-keyed cells against the mapper's columns:
// readonly and computed columns cannot be written, and select values must
// reference existing choice ids.
func (m *Mapper) ValidateCells(cells map[string]any) error {
	for id, v := range cells {
		c := m.byID[id]
		if c == nil {
			return domain.Validation("cell references non-existent column %q", id)
		}
		if c.Readonly || c.Type.Computed() {
			return domain.Validation("column %q is read-only", c.Name)
		}
		if v == nil || !c.Type.HasChoices() {
			continue
		}
		if err := checkChoices(c, v); err != nil {
			return err
		}
	}
	return nil
}

// MissingRequired lists required columns that have no value in cells.
func (m *Mapper) MissingRequired(cells map[string]any) []string {
	var missing []string
	for id, c := range m.byID {
		if !c.Required {
			continue
		}
		if isEmpty(cells[id]) {
			missing = append(missing, c.Name)
		}
	}
	return missing
}

// ClearedRequired lists required columns that cells would set to empty.
// Columns absent from cells are not considered.
func (m *Mapper) ClearedRequired(cells map[string]any) []string {
	var cleared []string
	for id, v := range cells {
		if c := m.byID[id]; c != nil && c.Required && isEmpty(v) {
			cleared = append(cleared, c.Name)
		}
	}
	sort.Strings(cleared)
	return cleared
}

func checkChoices(c *domain.Column, v any) error {
	var ids []string
	switch val := v.(type) {
	case string:
		ids = []string{val}
	case []string:
		ids = val
	case []any:
		if c.Type == domain.ColTypeSelect {
			return domain.Validation("column %q takes a single choice id", c.Name)
		}
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return domain.Validation("column %q: choice ids must be strings, got %T", c.Name, item)
			}
			ids = append(ids, s)
		}
	default:
		return domain.Validation("column %q: expected a choice id, got %T", c.Name, v)
	}
	if c.Type == domain.ColTypeSelect && len(ids) > 1 {
		return domain.Validation("column %q takes a single choice id", c.Name)
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if c.ChoiceByID(id) == nil {
			return domain.Validation("column %q has no choice with id %q%s", c.Name, id, labelHint(c, id))
		}
	}
	return nil
}

// labelHint points callers at the id when they passed a label.
func labelHint(c *domain.Column, v string) string {
	if c.Options == nil {
		return ""
	}
	for _, ch := range c.Options.Choices {
		if strings.EqualFold(ch.Label, v) {
			return fmt.Sprintf(" (use id %q for label %q)", ch.ID, ch.Label)
		}
	}
	return ""
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	}
	return false
}
