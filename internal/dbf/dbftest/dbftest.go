// Package dbftest builds small synthetic table and memo files for
// tests. Layouts mirror what the reader expects from real exports.
package dbftest

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"time"
)

type Column struct {
	Name     string
	Code     byte
	Length   int
	Decimals int
}

type Row struct {
	Cells   []any
	Deleted bool
}

const blockSize = 512

// Unix epoch as a Julian day number.
const julianUnixEpoch = 2440588

// WriteTable writes a main table file. Cell encoding follows the
// column's type code: strings are space-padded text, ints become
// little-endian int32, time values become {julian day, ms} pairs,
// bools become T/F, nil blanks the field.
func WriteTable(path string, cols []Column, rows []Row) error {
	record_len := 1
	for _, c := range cols {
		record_len += c.Length
	}
	header_len := 32 + 32*len(cols) + 1

	buf := make([]byte, 0, header_len+len(rows)*record_len+1)

	header := make([]byte, 32)
	header[0] = 0x03
	header[1], header[2], header[3] = 24, 1, 1
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(rows)))
	binary.LittleEndian.PutUint16(header[8:10], uint16(header_len))
	binary.LittleEndian.PutUint16(header[10:12], uint16(record_len))
	buf = append(buf, header...)

	for _, c := range cols {
		desc := make([]byte, 32)
		copy(desc[:11], strings.ToUpper(c.Name))
		desc[11] = c.Code
		desc[16] = byte(c.Length)
		desc[17] = byte(c.Decimals)
		buf = append(buf, desc...)
	}
	buf = append(buf, 0x0D)

	for _, row := range rows {
		flag := byte(0x20)
		if row.Deleted {
			flag = 0x2A
		}
		buf = append(buf, flag)
		for i, c := range cols {
			var cell any
			if i < len(row.Cells) {
				cell = row.Cells[i]
			}
			encoded, err := encodeCell(c, cell)
			if err != nil {
				return err
			}
			buf = append(buf, encoded...)
		}
	}
	buf = append(buf, 0x1A)

	return os.WriteFile(path, buf, 0644)
}

func encodeCell(c Column, cell any) ([]byte, error) {
	out := make([]byte, c.Length)

	switch c.Code {
	case 'I', '+':
		n := 0
		if cell != nil {
			var ok bool
			if n, ok = cell.(int); !ok {
				return nil, fmt.Errorf("column %s: want int, got %T", c.Name, cell)
			}
		}
		binary.LittleEndian.PutUint32(out, uint32(int32(n)))
		return out, nil

	case 'T', '@':
		if cell == nil {
			return out, nil
		}
		t, ok := cell.(time.Time)
		if !ok {
			return nil, fmt.Errorf("column %s: want time.Time, got %T", c.Name, cell)
		}
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		// count days in UTC so local DST shifts can't skew the division
		days := int(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).
			Sub(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)).Hours() / 24)
		binary.LittleEndian.PutUint32(out[0:4], uint32(int32(days+julianUnixEpoch)))
		binary.LittleEndian.PutUint32(out[4:8], uint32(int32(t.Sub(midnight).Milliseconds())))
		return out, nil

	case 'L':
		switch cell := cell.(type) {
		case nil:
			out[0] = ' '
		case bool:
			if cell {
				out[0] = 'T'
			} else {
				out[0] = 'F'
			}
		case string:
			out[0] = cell[0]
		default:
			return nil, fmt.Errorf("column %s: want bool, got %T", c.Name, cell)
		}
		return out, nil
	}

	s := ""
	if cell != nil {
		var ok bool
		if s, ok = cell.(string); !ok {
			return nil, fmt.Errorf("column %s: want string, got %T", c.Name, cell)
		}
	}
	if len(s) > c.Length {
		return nil, fmt.Errorf("column %s: %q exceeds length %d", c.Name, s, c.Length)
	}
	copy(out, s)
	for i := len(s); i < c.Length; i++ {
		out[i] = ' '
	}
	return out, nil
}

// WriteMemo writes a memo file with the given raw block payloads keyed
// by block number. Callers include their own 0x1A terminators; an
// all-zero payload models missing data.
func WriteMemo(path string, blocks map[int][]byte) error {
	max_block := 0
	for n := range blocks {
		if n > max_block {
			max_block = n
		}
	}

	buf := make([]byte, (max_block+1)*blockSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(max_block+1))
	for n, payload := range blocks {
		if n < 1 || len(payload) > blockSize {
			return fmt.Errorf("block %d: bad block or payload size %d", n, len(payload))
		}
		copy(buf[n*blockSize:], payload)
	}
	return os.WriteFile(path, buf, 0644)
}
