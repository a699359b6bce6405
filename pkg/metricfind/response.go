package metricfind

import (
	"bytes"

	json "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Field is a named column of scalar values.
type Field struct {
	Name   string `json:"name"`
	Values []any  `json:"values"`
}

// Frame is a tabular result: ordered fields of equal length.
type Frame struct {
	Name   string  `json:"name,omitempty"`
	Fields []Field `json:"fields"`
}

// Field returns the field with exactly the given name.
func (f Frame) Field(name string) (Field, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// FieldNames returns the field names in order.
func (f Frame) FieldNames() []string {
	names := make([]string, 0, len(f.Fields))
	for _, field := range f.Fields {
		names = append(names, field.Name)
	}
	return names
}

// ErrorPayload is the error body of a failed query.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Response is the backend answer to a query: either data frames or an error.
type Response struct {
	Data  []Frame       `json:"data,omitempty"`
	Error *ErrorPayload `json:"error,omitempty"`
}

var null = []byte("null")

// ParseResponse decodes a JSON backend response. An empty or null body yields
// a nil response, which Decode reports as ErrNoResponse.
func ParseResponse(body []byte) (*Response, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, null) {
		return nil, nil
	}

	var resp Response
	if err := json.ConfigCompatibleWithStandardLibrary.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "decoding query response")
	}
	return &resp, nil
}
