package schema

import "tablestore/internal/domain"

// Template is the initial schema of a new database.
type Template struct {
	Columns       []domain.Column
	Views         []domain.View
	DefaultView   string
	PinnedColumns []string
}

// IDFunc mints opaque ids for columns and views.
type IDFunc func() string

type colSpec struct {
	name    string
	typ     domain.ColumnType
	width   int
	choices []domain.Choice
	opts    *domain.ColumnOptions
}

func buildColumns(newID IDFunc, specs []colSpec) []domain.Column {
	cols := make([]domain.Column, len(specs))
	for i, s := range specs {
		opts := s.opts
		if s.typ.HasChoices() {
			cs := s.choices
			if cs == nil {
				cs = []domain.Choice{}
			}
			opts = &domain.ColumnOptions{Choices: cs}
		}
		width := s.width
		if width == 0 {
			width = defaultWidth
		}
		cols[i] = domain.Column{
			ID:       newID(),
			Name:     s.name,
			Type:     s.typ,
			Visible:  true,
			Order:    i,
			Readonly: s.typ.Computed(),
			Width:    width,
			Options:  opts,
		}
	}
	return cols
}

func idOf(cols []domain.Column, name string) string {
	for _, c := range cols {
		if c.Name == name {
			return c.ID
		}
	}
	return ""
}

// TaskTemplate: 15 fixed columns, table + kanban (by Status) + calendar views,
// Status pinned.
func TaskTemplate(newID IDFunc) Template {
	cols := buildColumns(newID, []colSpec{
		{name: "Title", typ: domain.ColTypeText, width: 280},
		{name: "Description", typ: domain.ColTypeText, width: 320},
		{name: "Status", typ: domain.ColTypeSelect, width: 140,
			choices: choices("Backlog", "Todo", "In Progress", "In Review", "Blocked", "Done", "Cancelled")},
		{name: "Priority", typ: domain.ColTypeSelect, width: 120,
			choices: choices("Low", "Medium", "High", "Urgent")},
		{name: "Type", typ: domain.ColTypeSelect, width: 120,
			choices: choices("Task", "Bug", "Feature")},
		{name: "Assignee", typ: domain.ColTypePerson},
		{name: "Due Date", typ: domain.ColTypeDate, width: 140,
			opts: &domain.ColumnOptions{DateFormat: "2006-01-02"}},
		{name: "Tags", typ: domain.ColTypeMultiSelect},
		{name: "Estimated Hours", typ: domain.ColTypeNumber, width: 120},
		{name: "Actual Hours", typ: domain.ColTypeNumber, width: 120},
		{name: "Parent", typ: domain.ColTypeRelation},
		{name: "Epic", typ: domain.ColTypeRelation},
		{name: "Feature", typ: domain.ColTypeRelation},
		{name: "Project", typ: domain.ColTypeRelation},
		{name: "Task Number", typ: domain.ColTypeNumber, width: 100},
	})
	status := idOf(cols, "Status")
	views := []domain.View{
		{ID: newID(), Name: "All Tasks", Type: domain.ViewTable},
		{ID: newID(), Name: "Board", Type: domain.ViewKanban, Config: domain.ViewConfig{GroupBy: status}},
		{ID: newID(), Name: "Calendar", Type: domain.ViewCalendar, Config: domain.ViewConfig{DateColumnID: idOf(cols, "Due Date")}},
	}
	return Template{
		Columns:       cols,
		Views:         views,
		DefaultView:   views[0].ID,
		PinnedColumns: []string{status},
	}
}

// EventTemplate: 11 event columns, calendar (by Start) + table views.
func EventTemplate(newID IDFunc) Template {
	cols := buildColumns(newID, []colSpec{
		{name: "Title", typ: domain.ColTypeText, width: 280},
		{name: "Description", typ: domain.ColTypeText, width: 320},
		{name: "Start", typ: domain.ColTypeDate, width: 160,
			opts: &domain.ColumnOptions{DateFormat: "2006-01-02T15:04"}},
		{name: "End", typ: domain.ColTypeDate, width: 160,
			opts: &domain.ColumnOptions{DateFormat: "2006-01-02T15:04"}},
		{name: "All Day", typ: domain.ColTypeCheckbox, width: 90},
		{name: "Location", typ: domain.ColTypeText},
		{name: "Attendees", typ: domain.ColTypePerson},
		{name: "Organizer", typ: domain.ColTypePerson},
		{name: "Category", typ: domain.ColTypeSelect, width: 140,
			choices: choices("Meeting", "Call", "Deadline", "Personal")},
		{name: "Status", typ: domain.ColTypeSelect, width: 140,
			choices: choices("Tentative", "Confirmed", "Cancelled")},
		{name: "Link", typ: domain.ColTypeURL},
	})
	views := []domain.View{
		{ID: newID(), Name: "Calendar", Type: domain.ViewCalendar, Config: domain.ViewConfig{DateColumnID: idOf(cols, "Start")}},
		{ID: newID(), Name: "All Events", Type: domain.ViewTable},
	}
	return Template{
		Columns:       cols,
		Views:         views,
		DefaultView:   views[0].ID,
		PinnedColumns: []string{},
	}
}

// GenericTemplate uses the caller's columns and a single table view.
func GenericTemplate(newID IDFunc, inputs []ColumnInput) (Template, error) {
	cols := make([]domain.Column, 0, len(inputs))
	for i, in := range inputs {
		c, err := BuildColumn(newID(), in, i)
		if err != nil {
			return Template{}, err
		}
		cols = append(cols, c)
	}
	if err := CheckUniqueNames(cols); err != nil {
		return Template{}, err
	}
	view := domain.View{ID: newID(), Name: "Table", Type: domain.ViewTable}
	return Template{
		Columns:       cols,
		Views:         []domain.View{view},
		DefaultView:   view.ID,
		PinnedColumns: []string{},
	}, nil
}
