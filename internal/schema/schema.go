package schema

import (
	"fmt"

	"github.com/jdf-id-au/jocap-reader/internal/types"
	"github.com/jdf-id-au/jocap-reader/pkg"
)

// Column describes one declared column of a table, as extracted (offline)
// from the vendor data dictionary. The semantic type here is advisory; the
// row decoder trusts the physical types embedded in the table file itself.
type Column struct {
	Name       string          `json:"name"`
	Label      string          `json:"label"`
	Type       types.FieldType `json:"type"`
	Length     int             `json:"length"`
	Decimals   int             `json:"decimals"`
	Unit       string          `json:"unit,omitempty"`
	PrimaryKey bool            `json:"primary_key,omitempty"`
}

type Table struct {
	Name    string
	Title   string
	Columns *pkg.InsertSortMap[string, *Column]
}

// Registry holds the loaded data dictionary, keyed by uppercase table
// identifier. Read-only after load.
type Registry struct {
	Tables pkg.Map[string, *Table]
}

func NewRegistry() *Registry {
	return &Registry{Tables: pkg.Map[string, *Table]{}}
}

func (r *Registry) Describe(table string) (*Table, bool) {
	t, ok := r.Tables[table]
	return t, ok
}

// Fields maps column name to its display label for one table. Columns
// with a recorded measurement unit get it appended in parentheses.
func (r *Registry) Fields(table string) (pkg.Map[string, string], bool) {
	t, ok := r.Tables[table]
	if !ok {
		return nil, false
	}

	fields := pkg.Map[string, string]{}
	for _, name := range t.Columns.Sorted {
		col := t.Columns.Get(name)
		label := col.Label
		if col.Unit != "" {
			label = fmt.Sprintf("%s (%s)", label, col.Unit)
		}
		fields.Set(name, label)
	}
	return fields, true
}
