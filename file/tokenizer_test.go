package file

import (
	"errors"
	"testing"

	"github.com/bmizerany/assert"
)

var invoiceFields = []string{"name", "number", "amount", "discount", "location"}

func TestDelimitedLineTokenizer_Tokenize(t *testing.T) {
	tk := &DelimitedLineTokenizer{Names: invoiceFields}
	fs, err := tk.Tokenize(`Acme, 1 ,100.00,10,"New York, NY"`, 2)
	assert.Equal(t, nil, err)
	assert.Equal(t, FieldSet{"name": "Acme", "number": "1", "amount": "100.00", "discount": "10", "location": "New York, NY"}, fs)

	tk = &DelimitedLineTokenizer{Delimiter: '|', Names: invoiceFields}
	fs, err = tk.Tokenize("Beta|2|50.00|0|CA", 3)
	assert.Equal(t, nil, err)
	assert.Equal(t, "CA", fs["location"])
}

func TestDelimitedLineTokenizer_WrongTokenCount(t *testing.T) {
	tk := &DelimitedLineTokenizer{Names: invoiceFields}
	_, err := tk.Tokenize("Acme,1,100.00", 7)
	var me *MalformedRecordError
	assert.T(t, errors.As(err, &me))
	assert.Equal(t, 7, me.Line)
	assert.Equal(t, 5, me.Expected)
	assert.Equal(t, 3, me.Actual)
	assert.Equal(t, "Acme,1,100.00", me.Input)

	_, err = tk.Tokenize("Acme,1,100.00,10,NY,extra", 8)
	assert.T(t, errors.As(err, &me))
	assert.Equal(t, 6, me.Actual)
}

func TestDelimitedLineTokenizer_BadQuote(t *testing.T) {
	tk := &DelimitedLineTokenizer{Names: invoiceFields}
	_, err := tk.Tokenize(`Acme,1,100.00,10,"NY`, 4)
	var me *MalformedRecordError
	assert.T(t, errors.As(err, &me))
	assert.NotEqual(t, nil, me.Err)
}
