package domain

// ColumnType defines the data type of a database column.
type ColumnType string

const (
	ColTypeText           ColumnType = "text"
	ColTypeNumber         ColumnType = "number"
	ColTypeSelect         ColumnType = "select"
	ColTypeMultiSelect    ColumnType = "multi-select"
	ColTypeDate           ColumnType = "date"
	ColTypeCheckbox       ColumnType = "checkbox"
	ColTypeURL            ColumnType = "url"
	ColTypeEmail          ColumnType = "email"
	ColTypePhone          ColumnType = "phone"
	ColTypePerson         ColumnType = "person"
	ColTypeFormula        ColumnType = "formula"
	ColTypeRelation       ColumnType = "relation"
	ColTypeRollup         ColumnType = "rollup"
	ColTypeCreatedTime    ColumnType = "created_time"
	ColTypeLastEditedTime ColumnType = "last_edited_time"
	ColTypeCreatedBy      ColumnType = "created_by"
	ColTypeLastEditedBy   ColumnType = "last_edited_by"
)

var columnTypes = map[ColumnType]bool{
	ColTypeText: true, ColTypeNumber: true, ColTypeSelect: true, ColTypeMultiSelect: true,
	ColTypeDate: true, ColTypeCheckbox: true, ColTypeURL: true, ColTypeEmail: true,
	ColTypePhone: true, ColTypePerson: true, ColTypeFormula: true, ColTypeRelation: true,
	ColTypeRollup: true, ColTypeCreatedTime: true, ColTypeLastEditedTime: true,
	ColTypeCreatedBy: true, ColTypeLastEditedBy: true,
}

// Valid reports whether t is a known column type.
func (t ColumnType) Valid() bool { return columnTypes[t] }

// HasChoices reports whether values of t must reference declared choices.
func (t ColumnType) HasChoices() bool {
	return t == ColTypeSelect || t == ColTypeMultiSelect
}

// Computed reports whether values of t are derived and never written by callers.
func (t ColumnType) Computed() bool {
	switch t {
	case ColTypeFormula, ColTypeRollup, ColTypeCreatedTime, ColTypeLastEditedTime,
		ColTypeCreatedBy, ColTypeLastEditedBy:
		return true
	}
	return false
}

// Choice is an enumerated select value. Cells store the ID, never the label.
type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// ColumnOptions carries type-specific settings.
type ColumnOptions struct {
	Choices            []Choice `json:"choices,omitempty"`
	DateFormat         string   `json:"dateFormat,omitempty"`
	NumberFormat       string   `json:"numberFormat,omitempty"`
	RelationDatabaseID string   `json:"relationDatabaseId,omitempty"`
	Formula            string   `json:"formula,omitempty"`
}

// Column is a typed field definition. ID is immutable and derives the
// physical slot; Name is the display and lookup key.
type Column struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     ColumnType     `json:"type"`
	Visible  bool           `json:"visible"`
	Order    int            `json:"order"`
	Required bool           `json:"required,omitempty"`
	Readonly bool           `json:"readonly,omitempty"`
	Width    int            `json:"width,omitempty"`
	Color    string         `json:"color,omitempty"`
	Options  *ColumnOptions `json:"options,omitempty"`
}

// ChoiceByID returns the choice with the given id, or nil.
func (c *Column) ChoiceByID(id string) *Choice {
	if c.Options == nil {
		return nil
	}
	for i := range c.Options.Choices {
		if c.Options.Choices[i].ID == id {
			return &c.Options.Choices[i]
		}
	}
	return nil
}
