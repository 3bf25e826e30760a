// Package dbf reads the dBASE-family table files of a JOCAP database
// export: one fixed-layout main file per table, with variable-length
// text held out-of-line in a companion memo file. Access is read-only
// single-pass; the index files some exports carry are ignored.
package dbf

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jdf-id-au/jocap-reader/internal/types"
	"github.com/pkg/errors"
)

const (
	headerTerminator = 0x0D
	fieldDescLen     = 32
	mainHeaderLen    = 32
)

type Field struct {
	Name     string // lowercased
	Code     byte   // native type code from the field descriptor
	Type     types.FieldType
	Length   int
	Decimals int
}

// Table is an opened main-file header plus the resolved path of its
// memo file, if one sits beside it. It holds no file handle itself;
// each Rows call opens and exclusively owns its own.
type Table struct {
	Path        string
	Fields      []*Field
	RecordCount int

	recordLen int
	headerLen int
	memoPath  string
}

// Open parses the column layout embedded in the main file's header and
// resolves the companion memo file (same base name, case-insensitive,
// .DBT extension, same directory).
func Open(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	header := make([]byte, mainHeaderLen)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, &OpenError{Path: path, Err: errors.Wrap(err, "reading header")}
	}

	t := &Table{
		Path:        path,
		RecordCount: int(binary.LittleEndian.Uint32(header[4:8])),
		headerLen:   int(binary.LittleEndian.Uint16(header[8:10])),
		recordLen:   int(binary.LittleEndian.Uint16(header[10:12])),
	}

	if t.headerLen < mainHeaderLen+1 || t.recordLen < 1 {
		return nil, &OpenError{Path: path, Err: errors.New("implausible header lengths")}
	}

	if err := t.readFieldDescriptors(f); err != nil {
		return nil, err
	}

	expected := int64(t.headerLen) + int64(t.RecordCount)*int64(t.recordLen)
	if stat.Size() < expected {
		return nil, &OpenError{Path: path, Err: errors.Errorf(
			"truncated: %d bytes, header promises at least %d", stat.Size(), expected)}
	}

	t.memoPath = findMemoFile(path)
	return t, nil
}

func (t *Table) readFieldDescriptors(f *os.File) error {
	desc := make([]byte, fieldDescLen)
	width := 1 // the record's deletion flag byte
	for offset := mainHeaderLen; offset < t.headerLen; offset += fieldDescLen {
		if _, err := io.ReadFull(f, desc[:1]); err != nil {
			return &OpenError{Path: t.Path, Err: errors.Wrap(err, "reading field descriptors")}
		}
		if desc[0] == headerTerminator {
			if width != t.recordLen {
				return &OpenError{Path: t.Path, Err: errors.Errorf(
					"field lengths sum to %d, record length is %d", width, t.recordLen)}
			}
			return nil
		}
		if offset+fieldDescLen > t.headerLen {
			break
		}
		if _, err := io.ReadFull(f, desc[1:]); err != nil {
			return &OpenError{Path: t.Path, Err: errors.Wrap(err, "reading field descriptors")}
		}

		name := desc[:11]
		if i := strings.IndexByte(string(name), 0); i >= 0 {
			name = name[:i]
		}

		code := desc[11]
		field_type, err := types.FieldTypeFromCode(code)
		if err != nil {
			return &OpenError{Path: t.Path, Err: err}
		}

		field := &Field{
			Name:     strings.ToLower(string(name)),
			Code:     code,
			Type:     field_type,
			Length:   int(desc[16]),
			Decimals: int(desc[17]),
		}
		if err := validateFieldLength(field); err != nil {
			return &OpenError{Path: t.Path, Err: err}
		}
		t.Fields = append(t.Fields, field)
		width += field.Length
	}
	return &OpenError{Path: t.Path, Err: errors.New("field descriptor terminator not found")}
}

// Binary field types have fixed physical sizes; a header declaring
// anything else would send the decoder out of bounds mid-record, so it
// is rejected here as unrecognized.
func validateFieldLength(f *Field) error {
	switch f.Code {
	case 'I', '+':
		if f.Length != 4 {
			return errors.Errorf("integer field %s has length %d, want 4", f.Name, f.Length)
		}
	case 'T', '@':
		if f.Length != 8 {
			return errors.Errorf("timestamp field %s has length %d, want 8", f.Name, f.Length)
		}
	case 'L':
		if f.Length != 1 {
			return errors.Errorf("logical field %s has length %d, want 1", f.Name, f.Length)
		}
	}
	return nil
}

// HasMemo reports whether a companion memo file was found next to the
// main file.
func (t *Table) HasMemo() bool { return t.memoPath != "" }

// Columns lists the physical column names in declared order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

func findMemoFile(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		name := entry.Name()
		ext := filepath.Ext(name)
		if strings.EqualFold(ext, ".dbt") &&
			strings.EqualFold(strings.TrimSuffix(name, ext), stem) {
			return filepath.Join(dir, name)
		}
	}
	return ""
}
