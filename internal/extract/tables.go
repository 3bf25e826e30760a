// Package extract correlates case records across the linked tables of
// one export directory: resolve matching case numbers from the patient
// table, then stream the related rows from every other table.
package extract

// The fixed set of linked tables in an export, in conventional order.
// All share the pnum case-number column.
var TargetTables = []string{
	"PATIENT",
	"OPERATION",
	"PERFUSION",
	"BLOODGAS",
	"LABDATA",
	"DRUGS",
	"EVENTS",
	"PERFREG",
	"SYSLOG",
}

// PrimaryTable holds the patient demographics rows that case searches
// run against.
const PrimaryTable = "PATIENT"

// PERFREG and SYSLOG are register/audit bookkeeping; bulk extraction
// leaves them out.
var extractExcluded = map[string]bool{
	"PERFREG": true,
	"SYSLOG":  true,
}
