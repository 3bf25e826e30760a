package dbf

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jdf-id-au/jocap-reader/pkg"
	"github.com/pkg/errors"
)

// Maps column name to its decoded value. Missing raw values decode to
// nil, never to a zero value of some other kind.
type Record = pkg.Map[string, any]

const (
	recordActive  = 0x20
	recordDeleted = 0x2A
	fileEOF       = 0x1A
)

// Unix epoch as a Julian day number, for timestamp fields.
const julianUnixEpoch = 2440588

// Rows is a lazy forward-only pass over a table's records. It owns the
// file handles it reads from: they are released when the pass reaches
// the end, when decoding fails, or when the consumer walks away early
// and calls Close. Rewinding means calling Table.Rows again.
type Rows struct {
	table *Table
	f     *os.File
	memo  *memoFile
	br    *bufio.Reader

	buf  []byte
	row  Record
	read int
	err  error
	done bool
}

func (t *Table) Rows() (*Rows, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return nil, &OpenError{Path: t.Path, Err: err}
	}
	if _, err := f.Seek(int64(t.headerLen), io.SeekStart); err != nil {
		f.Close()
		return nil, &OpenError{Path: t.Path, Err: err}
	}

	var memo *memoFile
	if t.memoPath != "" {
		memo, err = openMemoFile(t.memoPath)
		if err != nil {
			f.Close()
			return nil, &OpenError{Path: t.Path, Err: err}
		}
	}

	return &Rows{
		table: t,
		f:     f,
		memo:  memo,
		br:    bufio.NewReader(f),
		buf:   make([]byte, t.recordLen),
	}, nil
}

// Next advances to the next live record, reporting false at the end of
// the pass or on error. Deleted records are skipped.
func (r *Rows) Next() bool {
	if r.done {
		return false
	}
	for {
		if r.read >= r.table.RecordCount {
			r.Close()
			return false
		}
		if _, err := io.ReadFull(r.br, r.buf); err != nil {
			r.fail(&DecodeError{Path: r.table.Path, Record: r.read,
				Err: errors.Wrap(err, "reading record")})
			return false
		}
		r.read++

		switch r.buf[0] {
		case recordDeleted:
			continue
		case fileEOF:
			r.Close()
			return false
		}

		row, err := r.decode(r.buf)
		if err != nil {
			r.fail(err)
			return false
		}
		r.row = row
		return true
	}
}

// Row is valid until the next call to Next.
func (r *Rows) Row() Record { return r.row }

func (r *Rows) Err() error { return r.err }

// Close releases the underlying file handles. Safe to call more than
// once, and after Next has already closed on completion.
func (r *Rows) Close() error {
	if r.done {
		return nil
	}
	r.done = true
	err := r.f.Close()
	if memo_err := r.memo.Close(); err == nil {
		err = memo_err
	}
	return err
}

func (r *Rows) fail(err error) {
	r.Close()
	r.err = err
}

func (r *Rows) decode(buf []byte) (Record, error) {
	row := Record{}
	offset := 1
	for _, field := range r.table.Fields {
		raw := buf[offset : offset+field.Length]
		offset += field.Length

		value, err := r.decodeField(field, raw)
		if err != nil {
			return nil, &DecodeError{Path: r.table.Path, Record: r.read - 1,
				Field: field.Name, Err: err}
		}
		row.Set(field.Name, value)
	}
	return row, nil
}

// decodeField interprets raw bytes per the field's physical type code.
// The schema registry's semantic types play no part here.
func (r *Rows) decodeField(field *Field, raw []byte) (any, error) {
	switch field.Code {
	case 'C', 'V':
		s := strings.TrimSpace(strings.TrimRight(string(raw), "\x00"))
		if s == "" {
			return nil, nil
		}
		return s, nil

	case 'N', 'F':
		s := strings.TrimSpace(string(raw))
		if s == "" {
			return nil, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Errorf("bad numeric %q", s)
		}
		return v, nil

	case 'I', '+':
		return int(int32(binary.LittleEndian.Uint32(raw))), nil

	case 'D':
		s := strings.TrimSpace(string(raw))
		if s == "" {
			return nil, nil
		}
		return parseCivilDate(s)

	case 'T', '@':
		day := int32(binary.LittleEndian.Uint32(raw[0:4]))
		ms := int32(binary.LittleEndian.Uint32(raw[4:8]))
		if day == 0 && ms == 0 {
			return nil, nil
		}
		t := time.Date(1970, 1, 1, 0, 0, 0, 0, time.Local).
			AddDate(0, 0, int(day)-julianUnixEpoch).
			Add(time.Duration(ms) * time.Millisecond)
		return t, nil

	case 'L':
		switch raw[0] {
		case 'Y', 'y', 'T', 't':
			return true, nil
		case 'N', 'n', 'F', 'f':
			return false, nil
		case ' ', '?', 0:
			return nil, nil
		}
		return nil, errors.Errorf("bad logical %q", raw[0])

	case 'M':
		return r.decodeMemo(raw)
	}

	return nil, errors.Errorf("no decoder for type code %q", field.Code)
}

func (r *Rows) decodeMemo(raw []byte) (any, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "0" {
		return nil, nil
	}
	block, err := strconv.Atoi(s)
	if err != nil {
		return nil, errors.Errorf("bad memo reference %q", s)
	}
	if r.memo == nil {
		return nil, errors.New("memo reference but no memo file")
	}
	text, ok, err := r.memo.read(block)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return text, nil
}

// Dates are stored as YYYYMMDD text, already in local civil time.
func parseCivilDate(s string) (any, error) {
	if len(s) != 8 {
		return nil, errors.Errorf("bad date %q", s)
	}
	year, err := strconv.Atoi(s[0:4])
	if err != nil {
		return nil, errors.Errorf("bad date %q", s)
	}
	month, err := strconv.Atoi(s[4:6])
	if err != nil {
		return nil, errors.Errorf("bad date %q", s)
	}
	day, err := strconv.Atoi(s[6:8])
	if err != nil {
		return nil, errors.Errorf("bad date %q", s)
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local), nil
}
