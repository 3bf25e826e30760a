package types

import "fmt"

var VALID_FIELD_TYPES = []FieldType{
	FieldTypeDouble, FieldTypeText, FieldTypeDate,
	FieldTypeTimestamp, FieldTypeLongText, FieldTypeBool, FieldTypeInt,
}

type FieldType string

const (
	FieldTypeDouble    FieldType = "Double"
	FieldTypeText      FieldType = "Text"
	FieldTypeDate      FieldType = "Date"
	FieldTypeTimestamp FieldType = "Timestamp"
	FieldTypeLongText  FieldType = "LongText"
	FieldTypeBool      FieldType = "Bool"
	FieldTypeInt       FieldType = "Int"
)

func ValidateFieldType(t FieldType) error {
	for _, valid := range VALID_FIELD_TYPES {
		if t == valid {
			return nil
		}
	}
	return fmt.Errorf("Invalid field type: %s", t)
}

type UnmappedTypeError struct {
	Code byte
}

func (e *UnmappedTypeError) Error() string {
	return fmt.Sprintf("Unmapped native field type code: %q", e.Code)
}

// FieldTypeFromCode translates a native dBASE field type code into its
// canonical field type. An unknown code means the export comes from a
// table version this reader does not support, so it is an error rather
// than a fallback to text.
func FieldTypeFromCode(code byte) (FieldType, error) {
	switch code {
	case 'N', 'F':
		return FieldTypeDouble, nil
	case 'C', 'V':
		return FieldTypeText, nil
	case 'D':
		return FieldTypeDate, nil
	case 'T', '@':
		return FieldTypeTimestamp, nil
	case 'M':
		return FieldTypeLongText, nil
	case 'L':
		return FieldTypeBool, nil
	case 'I', '+':
		return FieldTypeInt, nil
	}
	return "", &UnmappedTypeError{Code: code}
}
