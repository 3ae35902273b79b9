package file

import (
	"encoding/csv"
	"strings"
)

//FieldSet the named tokens of one record
type FieldSet map[string]string

//DelimitedLineTokenizer splits one line on a delimiter, tokens may be quoted to contain the delimiter
type DelimitedLineTokenizer struct {
	Delimiter  rune
	Names      []string
	LazyQuotes bool
}

//Tokenize splits line into exactly len(Names) tokens, surrounding spaces of each token are trimmed
func (t *DelimitedLineTokenizer) Tokenize(line string, lineNumber int) (FieldSet, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = t.Delimiter
	if r.Comma == 0 {
		r.Comma = DefaultDelimiter
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = t.LazyQuotes
	tokens, err := r.Read()
	if err != nil {
		return nil, &MalformedRecordError{Line: lineNumber, Expected: len(t.Names), Input: line, Err: err}
	}
	if len(tokens) != len(t.Names) {
		return nil, &MalformedRecordError{Line: lineNumber, Expected: len(t.Names), Actual: len(tokens), Input: line}
	}
	fs := make(FieldSet, len(tokens))
	for i, name := range t.Names {
		fs[name] = strings.TrimSpace(tokens[i])
	}
	return fs, nil
}
