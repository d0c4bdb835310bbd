package lifterr_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dashlift/dashlift/lifterr"
)

func TestParseError(t *testing.T) {
	err := lifterr.NewParseError("no workbook definition found")
	assert.Equal(t, lifterr.TypeParse, err.Type())
	assert.Equal(t, "[ParseError] no workbook definition found", err.Error())
}

func TestParseErrorInArchive(t *testing.T) {
	err := lifterr.NewParseErrorInArchive("sales.twbx", "sales.twb", "malformed XML")
	assert.Equal(t, lifterr.TypeParse, err.Type())
	assert.Equal(t, "sales.twbx", err.Archive)
	assert.Equal(t, "sales.twb", err.Entry)
	assert.Equal(t, `[ParseError] malformed XML (entry "sales.twb" in sales.twbx)`, err.Error())
}

func TestValidationError(t *testing.T) {
	err := lifterr.NewValidationError("Profit Ratio", "results differ in 12 rows")
	assert.Equal(t, lifterr.TypeValidation, err.Type())
	assert.Equal(t, "Profit Ratio", err.Metric)
	assert.Equal(t, `[ValidationError] metric "Profit Ratio": results differ in 12 rows`, err.Error())
}

func TestMultiError(t *testing.T) {
	e1 := lifterr.NewParseError("error 1")
	e2 := lifterr.NewParseError("error 2")
	multi := &lifterr.MultiError{Errors: []error{e1, e2}}

	assert.Equal(t, lifterr.TypeParse, multi.Type())
	errMsg := multi.Error()
	assert.Contains(t, errMsg, "2 error(s) occurred:")
	assert.Contains(t, errMsg, "- [ParseError] error 1")
	assert.Contains(t, errMsg, "- [ParseError] error 2")
}

func TestMultiErrorMixed(t *testing.T) {
	e1 := lifterr.NewValidationError("m", "off by 3.2")
	e2 := lifterr.NewParseError("bad zip")
	multi := &lifterr.MultiError{Errors: []error{e1, e2}}

	assert.Equal(t, lifterr.TypeValidation, multi.Type())
}

func TestMultiErrorEmpty(t *testing.T) {
	multi := &lifterr.MultiError{Errors: []error{}}
	assert.Equal(t, lifterr.ErrorType("MultiError"), multi.Type())
	assert.True(t, strings.HasPrefix(multi.Error(), "0 error(s) occurred:"))
}
