package schema

import (
	"encoding/json"
	"io"
	"os"

	"github.com/jdf-id-au/jocap-reader/internal/types"
	"github.com/jdf-id-au/jocap-reader/pkg"
	"github.com/pkg/errors"
)

type tableDescriptor struct {
	Title   string    `json:"title"`
	Columns []*Column `json:"columns"`
}

// Load reads a persisted schema descriptor: a json object keyed by
// uppercase table identifier. Column order in the descriptor is the
// declared column order and is preserved.
func Load(r io.Reader) (*Registry, error) {
	var descriptors map[string]tableDescriptor
	if err := json.NewDecoder(r).Decode(&descriptors); err != nil {
		return nil, errors.Wrap(err, "parsing schema descriptor")
	}

	// map iteration order doesn't matter here; column order within
	// each table is what the registry preserves
	registry := NewRegistry()
	for name, d := range descriptors {
		t, err := newTable(name, d)
		if err != nil {
			return nil, err
		}
		registry.Tables.Set(name, t)
	}
	return registry, nil
}

func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening schema descriptor")
	}
	defer f.Close()
	return Load(f)
}

func newTable(name string, d tableDescriptor) (*Table, error) {
	t := &Table{
		Name:    name,
		Title:   d.Title,
		Columns: pkg.NewInsertSortMap[string, *Column](),
	}
	for _, col := range d.Columns {
		if err := types.ValidateFieldType(col.Type); err != nil {
			return nil, errors.Wrapf(err, "table %s column %s", name, col.Name)
		}
		t.Columns.Push(col.Name, col)
	}
	return t, nil
}
