package metricfind

import (
	"errors"
	"fmt"
	"strings"
)

// Reserved column names of the two column convention.
const (
	TextColumn  = "__text"
	ValueColumn = "__value"
)

// ErrNoResponse is returned when the backend returned nothing at all.
var ErrNoResponse = errors.New("no response received from the backend")

// BackendError carries the error message reported by the backend.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	return e.Message
}

// MissingTextValueColumnsError is returned for two column results that do not
// name their columns __text and __value.
type MissingTextValueColumnsError struct {
	Found []string
}

func (e *MissingTextValueColumnsError) Error() string {
	return fmt.Sprintf(
		"received two fields, expected them to be named %q and %q but got: %s",
		TextColumn, ValueColumn, strings.Join(e.Found, ", "),
	)
}

// TooManyFieldsError is returned for results with more than two columns.
type TooManyFieldsError struct {
	Count int
	Found []string
}

func (e *TooManyFieldsError) Error() string {
	return fmt.Sprintf(
		"received more than two (%d) fields: %s", e.Count, strings.Join(e.Found, ", "),
	)
}

// OptionPair is one entry of a variable option list. Value is nil for single
// column results.
type OptionPair struct {
	Text  any `json:"text"`
	Value any `json:"value,omitempty"`
}

// Decode turns the first frame of a backend response into variable options.
//
// A single column yields one option per value with the value as text. Two
// columns must be named __text and __value. Anything wider is rejected rather
// than guessing which columns were meant. A result without columns yields no
// options.
func Decode(resp *Response) ([]OptionPair, error) {
	if resp == nil {
		return nil, ErrNoResponse
	}
	if resp.Error != nil {
		return nil, &BackendError{Message: resp.Error.Message}
	}

	if len(resp.Data) == 0 {
		return []OptionPair{}, nil
	}
	frame := resp.Data[0]

	switch len(frame.Fields) {
	case 0:
		return []OptionPair{}, nil
	case 1:
		values := frame.Fields[0].Values
		options := make([]OptionPair, 0, len(values))
		for _, v := range values {
			options = append(options, OptionPair{Text: v})
		}
		return options, nil
	case 2:
		text, hasText := frame.Field(TextColumn)
		value, hasValue := frame.Field(ValueColumn)
		if !hasText || !hasValue {
			return nil, &MissingTextValueColumnsError{Found: frame.FieldNames()}
		}
		options := make([]OptionPair, 0, len(text.Values))
		for i := range text.Values {
			var v any
			if i < len(value.Values) {
				v = value.Values[i]
			}
			options = append(options, OptionPair{Text: text.Values[i], Value: v})
		}
		return options, nil
	default:
		return nil, &TooManyFieldsError{Count: len(frame.Fields), Found: frame.FieldNames()}
	}
}
