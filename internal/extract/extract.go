package extract

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jdf-id-au/jocap-reader/internal/dbf"
	"github.com/jdf-id-au/jocap-reader/internal/query"
)

const tableExt = ".DBF"

// Rows is a filtered pass over one table: the underlying decode stream
// with non-matching records dropped. It owns its table's file handles
// and can be closed independently of any other table's stream.
type Rows struct {
	table *dbf.Table
	inner *dbf.Rows
	pred  query.Predicate
}

// Table is the opened header of the stream's source table.
func (r *Rows) Table() *dbf.Table { return r.table }

func (r *Rows) Next() bool {
	for r.inner.Next() {
		if r.pred(r.inner.Row()) {
			return true
		}
	}
	return false
}

func (r *Rows) Row() dbf.Record { return r.inner.Row() }
func (r *Rows) Err() error      { return r.inner.Err() }
func (r *Rows) Close() error    { return r.inner.Close() }

// CaseSet is the target case numbers of an extraction.
type CaseSet map[int]struct{}

func Cases(ids ...int) CaseSet {
	set := CaseSet{}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// CasesFromRecords derives case numbers from previously found primary
// rows. Records whose case number does not parse are dropped.
func CasesFromRecords(records []dbf.Record) CaseSet {
	set := CaseSet{}
	for _, row := range records {
		if n, ok := query.CaseNumber(row); ok {
			set[n] = struct{}{}
		}
	}
	return set
}

func (s CaseSet) predicate() query.Predicate {
	return func(row dbf.Record) bool {
		n, ok := query.CaseNumber(row)
		if !ok {
			return false
		}
		_, hit := s[n]
		return hit
	}
}

// FindCases opens only the primary table and lazily yields the rows
// matching all conditions, in file order. Condition errors surface
// before any file is opened.
func FindCases(dir string, conds ...query.Condition) (*Rows, error) {
	pred, err := query.Compile(conds...)
	if err != nil {
		return nil, err
	}

	path, ok := findTable(dir, PrimaryTable)
	if !ok {
		path = filepath.Join(dir, PrimaryTable+tableExt)
	}
	table, err := dbf.Open(path)
	if err != nil {
		return nil, err
	}
	rows, err := table.Rows()
	if err != nil {
		return nil, err
	}
	return &Rows{table: table, inner: rows, pred: pred}, nil
}

// ExtractCases opens every linked table except the register/audit pair
// and returns, per table, a lazy stream of the rows whose case number
// is in the set. Tables missing from the directory are omitted rather
// than failing the extraction. Each returned stream must be closed (or
// exhausted) by the caller; there is no overall transaction.
func ExtractCases(dir string, cases CaseSet) (map[string]*Rows, error) {
	results := map[string]*Rows{}
	for _, name := range TargetTables {
		if extractExcluded[name] {
			continue
		}
		path, ok := findTable(dir, name)
		if !ok {
			continue
		}

		table, err := dbf.Open(path)
		if err != nil {
			closeAll(results)
			return nil, err
		}
		rows, err := table.Rows()
		if err != nil {
			closeAll(results)
			return nil, err
		}
		results[name] = &Rows{table: table, inner: rows, pred: cases.predicate()}
	}
	return results, nil
}

func closeAll(results map[string]*Rows) {
	for _, rows := range results {
		rows.Close()
	}
}

// findTable resolves a table's main file in dir by its conventional
// name, tolerating filename case differences.
func findTable(dir, name string) (string, bool) {
	want := name + tableExt
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if strings.EqualFold(entry.Name(), want) {
			return filepath.Join(dir, entry.Name()), true
		}
	}
	return "", false
}
