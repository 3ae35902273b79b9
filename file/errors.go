package file

import "fmt"

//MalformedRecordError a non-blank line that does not split into the expected number of tokens
type MalformedRecordError struct {
	Line     int
	Expected int
	Actual   int
	Input    string
	Err      error
}

func (e *MalformedRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed record at line %d: %v, input:%q", e.Line, e.Err, e.Input)
	}
	return fmt.Sprintf("malformed record at line %d: expected %d tokens, actual %d, input:%q", e.Line, e.Expected, e.Actual, e.Input)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

//FieldConversionError a raw field value that can not be converted to the target field type
type FieldConversionError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldConversionError) Error() string {
	return fmt.Sprintf("can not convert field %s value %q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldConversionError) Unwrap() error {
	return e.Err
}
