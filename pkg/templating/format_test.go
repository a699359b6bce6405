package templating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamedFormats(t *testing.T) {
	host := &Variable{
		Name:    "host",
		Current: Current{Text: []string{"Server A", "Server B"}, Value: []string{"a", "b"}},
	}

	tests := map[string]struct {
		format   string
		value    any
		variable *Variable
		expected string
	}{
		"raw list":               {"raw", []string{"a", "b"}, nil, "a,b"},
		"csv list":               {"csv", []string{"a", "b"}, nil, "a,b"},
		"pipe list":              {"pipe", []string{"a", "b"}, nil, "a|b"},
		"pipe text":              {"pipe", "a", nil, "a"},
		"regex text":             {"regex", "a.b", nil, `a\.b`},
		"regex single item list": {"regex", []string{"a.b"}, nil, `a\.b`},
		"regex list":             {"regex", []string{"a.b", "c"}, nil, `(a\.b|c)`},
		"lucene text":            {"lucene", "a:b", nil, `a\:b`},
		"lucene list":            {"lucene", []string{"a", "b c"}, nil, `("a" OR "b c")`},
		"lucene single list":     {"lucene", []string{"a:b"}, nil, `("a\:b")`},
		"lucene empty list":      {"lucene", []string{}, nil, "__empty__"},
		"json list":              {"json", []string{"a", "b"}, nil, `["a","b"]`},
		"json text":              {"json", "a", nil, `"a"`},
		"singlequote list":       {"singlequote", []string{"a", "b'c"}, nil, `'a','b\'c'`},
		"doublequote text":       {"doublequote", `a"b`, nil, `"a\"b"`},
		"sqlstring text":         {"sqlstring", "it's", nil, `'it''s'`},
		"sqlstring list":         {"sqlstring", []any{"a", 1}, nil, `'a','1'`},
		"glob list":              {"glob", []string{"a", "b"}, nil, "{a,b}"},
		"glob single":            {"glob", []string{"a"}, nil, "a"},
		"distributed":            {"distributed", []string{"a", "b", "c"}, host, "a,host=b,host=c"},
		"percentencode text":     {"percentencode", "a b/c", nil, "a%20b%2Fc"},
		"percentencode list":     {"percentencode", []string{"a", "b"}, nil, "%7Ba%2Cb%7D"},
		"queryparam":             {"queryparam", []string{"a", "b c"}, host, "var-host=a&var-host=b%20c"},
		"text":                   {"text", []string{"a", "b"}, host, "Server A + Server B"},
		"text without variable":  {"text", "a", nil, "a"},
		"unknown":                {"nope", []string{"a", "b"}, nil, "a,b"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Named(tc.format).Apply(tc.value, tc.variable))
		})
	}
}

func TestFormat_Kinds(t *testing.T) {
	assert.True(t, Format{}.IsIdentity())
	assert.True(t, Custom(nil).IsIdentity())
	assert.Equal(t, "identity", Identity().String())
	assert.Equal(t, "join(;)", Join(";").String())
	assert.Equal(t, "csv", Named("csv").String())
	assert.Equal(t, "csv", Named("csv").Name())

	assert.Equal(t, "a;b", Join(";").Apply([]string{"a", "b"}, nil))
	assert.Equal(t, "a", Join(";").Apply("a", nil))
	assert.Equal(t, "1,2", Identity().Apply([]any{1, 2}, nil))
	assert.Equal(t, "", Identity().Apply(nil, nil))
	assert.Contains(t, FormatNames(), "sqlstring")
}
