// Package export bulk-loads extracted case rows into Postgres staging
// tables, one per source table, for downstream analysis.
package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jdf-id-au/jocap-reader/internal/dbf"
	"github.com/jdf-id-au/jocap-reader/internal/extract"
	"github.com/jdf-id-au/jocap-reader/internal/types"
	"github.com/jdf-id-au/jocap-reader/pkg"
	"github.com/pkg/errors"
)

// LoadCases extracts the given cases from dir and copies each table's
// matching rows into a jocap_<table> staging table, created (or
// replaced) on the fly. Returns rows copied per staging table.
func LoadCases(ctx context.Context, connStr, dir string, cases extract.CaseSet) (map[string]int64, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return nil, errors.Wrap(err, "ping")
	}

	results, err := extract.ExtractCases(dir, cases)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, rows := range results {
			rows.Close()
		}
	}()

	counts := map[string]int64{}
	for name, rows := range results {
		copied, err := loadTable(ctx, pool, name, rows)
		if err != nil {
			return nil, errors.Wrapf(err, "loading table %s", name)
		}
		counts[stagingName(name)] = copied
		pkg.InfoLog("loaded", copied, "rows into", stagingName(name))
	}
	return counts, nil
}

func loadTable(ctx context.Context, pool *pgxpool.Pool, name string, rows *extract.Rows) (int64, error) {
	staging := stagingName(name)
	fields := rows.Table().Fields

	if _, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", staging)); err != nil {
		return 0, err
	}
	if _, err := pool.Exec(ctx, createStatement(staging, fields)); err != nil {
		return 0, err
	}

	var batch [][]any
	for rows.Next() {
		batch = append(batch, rowValues(rows.Row(), fields))
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}
	return pool.CopyFrom(ctx, pgx.Identifier{staging}, columns, pgx.CopyFromRows(batch))
}

func stagingName(table string) string {
	return "jocap_" + strings.ToLower(table)
}

// createStatement builds the staging DDL from the table's physical
// layout, via the canonical type mapping.
func createStatement(staging string, fields []*dbf.Field) string {
	defs := make([]string, len(fields))
	for i, f := range fields {
		defs[i] = fmt.Sprintf("%s %s", f.Name, sqlType(f.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", staging, strings.Join(defs, ", "))
}

func sqlType(t types.FieldType) string {
	switch t {
	case types.FieldTypeDouble:
		return "double precision"
	case types.FieldTypeDate:
		return "date"
	case types.FieldTypeTimestamp:
		return "timestamp"
	case types.FieldTypeBool:
		return "boolean"
	case types.FieldTypeInt:
		return "integer"
	}
	return "text"
}

// rowValues orders a decoded record's values by the table's declared
// columns, as CopyFrom wants them. Absent values stay nil.
func rowValues(row dbf.Record, fields []*dbf.Field) []any {
	values := make([]any, len(fields))
	for i, f := range fields {
		values[i] = row.Get(f.Name)
	}
	return values
}
