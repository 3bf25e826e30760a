package dbf

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

const (
	memoBlockSize  = 512
	memoTerminator = 0x1A
)

// dBASE IV memo blocks open with this marker followed by a uint32
// length that includes the 8 header bytes.
var memoBlockMarker = []byte{0xFF, 0xFF, 0x08, 0x00}

type memoFile struct {
	f *os.File
}

func openMemoFile(path string) (*memoFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening memo file")
	}
	return &memoFile{f: f}, nil
}

func (m *memoFile) Close() error {
	if m == nil || m.f == nil {
		return nil
	}
	err := m.f.Close()
	m.f = nil
	return err
}

// read resolves one memo reference. The bool result is false when the
// payload is absent: a physically all-zero buffer is missing data, not
// an empty string.
func (m *memoFile) read(block int) (string, bool, error) {
	head := make([]byte, 8)
	offset := int64(block) * memoBlockSize
	if _, err := m.f.ReadAt(head, offset); err != nil {
		return "", false, errors.Wrapf(err, "memo block %d", block)
	}

	var payload []byte
	if bytes.Equal(head[:4], memoBlockMarker) {
		length := int(binary.LittleEndian.Uint32(head[4:8]))
		if length < 8 {
			return "", false, errors.Errorf("memo block %d: implausible length %d", block, length)
		}
		payload = make([]byte, length-8)
		if _, err := m.f.ReadAt(payload, offset+8); err != nil {
			return "", false, errors.Wrapf(err, "memo block %d", block)
		}
	} else {
		// older exports end the payload with 0x1A instead of
		// carrying a length header; it may span blocks
		var err error
		payload, err = m.readTerminated(offset)
		if err != nil {
			return "", false, err
		}
		// only this format uses the terminator; a length-framed
		// payload may legitimately contain 0x1A bytes
		if i := bytes.IndexByte(payload, memoTerminator); i >= 0 {
			payload = payload[:i]
		}
		payload = bytes.TrimRight(payload, "\x00")
	}

	if allZero(payload) {
		return "", false, nil
	}
	return string(payload), true, nil
}

func (m *memoFile) readTerminated(offset int64) ([]byte, error) {
	var payload []byte
	buf := make([]byte, memoBlockSize)
	for {
		n, err := m.f.ReadAt(buf, offset)
		payload = append(payload, buf[:n]...)
		if bytes.IndexByte(buf[:n], memoTerminator) >= 0 {
			return payload, nil
		}
		if allZero(buf[:n]) {
			// a zeroed block never gains a terminator; stop
			// rather than bleed into the next memo's blocks
			return payload, nil
		}
		if err == io.EOF {
			return payload, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading memo payload")
		}
		offset += int64(n)
	}
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
