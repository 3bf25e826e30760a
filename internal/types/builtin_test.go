package types_test

import (
	"testing"

	. "github.com/jdf-id-au/jocap-reader/internal/types"
	"gotest.tools/assert"
)

func TestFieldTypeFromCode(t *testing.T) {
	known := map[byte]FieldType{
		'N': FieldTypeDouble,
		'F': FieldTypeDouble,
		'C': FieldTypeText,
		'D': FieldTypeDate,
		'T': FieldTypeTimestamp,
		'M': FieldTypeLongText,
		'L': FieldTypeBool,
		'I': FieldTypeInt,
	}

	for code, expected := range known {
		ft, err := FieldTypeFromCode(code)
		assert.NilError(t, err)
		assert.Equal(t, ft, expected)
	}
}

func TestFieldTypeFromCodeUnmapped(t *testing.T) {
	_, err := FieldTypeFromCode('G')
	assert.Assert(t, err != nil)

	unmapped, ok := err.(*UnmappedTypeError)
	assert.Assert(t, ok)
	assert.Equal(t, unmapped.Code, byte('G'))
}

func TestValidateFieldType(t *testing.T) {
	for _, ft := range VALID_FIELD_TYPES {
		assert.NilError(t, ValidateFieldType(ft))
	}
	assert.Assert(t, ValidateFieldType("Vector") != nil)
}
