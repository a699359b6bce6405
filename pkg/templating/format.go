package templating

import (
	"strings"

	"github.com/grafana/regexp"
	json "github.com/json-iterator/go"
)

type formatKind int

const (
	formatIdentity formatKind = iota
	formatJoin
	formatNamed
	formatCustom
)

// FormatFunc renders a value the default way.
type FormatFunc func(value any) string

// CustomFunc is a caller supplied formatter. It receives the value, the
// variable being resolved (nil for scoped values without a variable) and the
// default formatter, and controls the full output.
type CustomFunc func(value any, v *Variable, fallback FormatFunc) string

// Format selects how a resolved value is rendered into query text. The zero
// value is Identity.
type Format struct {
	kind formatKind
	sep  string
	name string
	fn   CustomFunc
}

// Identity leaves text untouched and joins lists with a comma.
func Identity() Format { return Format{} }

// Join leaves text untouched and joins lists with sep.
func Join(sep string) Format { return Format{kind: formatJoin, sep: sep} }

// Named selects one of the registered named formats, e.g. "csv" or "sqlstring".
// Unknown names behave like Identity.
func Named(name string) Format { return Format{kind: formatNamed, name: name} }

// Custom delegates rendering to fn.
func Custom(fn CustomFunc) Format {
	if fn == nil {
		return Identity()
	}
	return Format{kind: formatCustom, fn: fn}
}

// IsIdentity reports whether f is the zero format.
func (f Format) IsIdentity() bool {
	return f.kind == formatIdentity
}

// Name returns the named format, if any.
func (f Format) Name() string {
	return f.name
}

func (f Format) String() string {
	switch f.kind {
	case formatJoin:
		return "join(" + f.sep + ")"
	case formatNamed:
		return f.name
	case formatCustom:
		return "custom"
	}
	return "identity"
}

// Apply renders value with f.
func (f Format) Apply(value any, v *Variable) string {
	switch f.kind {
	case formatJoin:
		return joinFormat(value, f.sep)
	case formatNamed:
		if named, ok := namedFormats[f.name]; ok {
			return named(value, v)
		}
	case formatCustom:
		return f.fn(value, v, defaultFormat)
	}
	return defaultFormat(value)
}

func defaultFormat(value any) string {
	return joinFormat(value, ",")
}

func joinFormat(value any, sep string) string {
	if values, ok := toStrings(value); ok {
		return strings.Join(values, sep)
	}
	return toString(value)
}

type namedFormat func(value any, v *Variable) string

// namedFormats are the format specifiers accepted by [[name:format]] and ${name:format}.
var namedFormats = map[string]namedFormat{
	"raw":  func(value any, _ *Variable) string { return defaultFormat(value) },
	"csv":  func(value any, _ *Variable) string { return joinFormat(value, ",") },
	"pipe": func(value any, _ *Variable) string { return joinFormat(value, "|") },
	"regex": func(value any, _ *Variable) string {
		values, ok := toStrings(value)
		if !ok {
			return regexp.QuoteMeta(toString(value))
		}
		escaped := mapStrings(values, regexp.QuoteMeta)
		if len(escaped) == 1 {
			return escaped[0]
		}
		return "(" + strings.Join(escaped, "|") + ")"
	},
	"lucene": func(value any, _ *Variable) string {
		values, ok := toStrings(value)
		if !ok {
			return luceneEscape(toString(value))
		}
		if len(values) == 0 {
			return "__empty__"
		}
		quoted := mapStrings(values, func(s string) string { return `"` + luceneEscape(s) + `"` })
		return "(" + strings.Join(quoted, " OR ") + ")"
	},
	"json": func(value any, _ *Variable) string {
		out, err := json.ConfigCompatibleWithStandardLibrary.MarshalToString(value)
		if err != nil {
			return defaultFormat(value)
		}
		return out
	},
	"singlequote": func(value any, _ *Variable) string {
		return quoteEach(value, func(s string) string { return "'" + strings.ReplaceAll(s, "'", `\'`) + "'" })
	},
	"doublequote": func(value any, _ *Variable) string {
		return quoteEach(value, func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"` })
	},
	"sqlstring": func(value any, _ *Variable) string {
		return quoteEach(value, func(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" })
	},
	"glob": func(value any, _ *Variable) string {
		values, ok := toStrings(value)
		if !ok {
			return toString(value)
		}
		if len(values) == 1 {
			return values[0]
		}
		return "{" + strings.Join(values, ",") + "}"
	},
	"distributed": func(value any, v *Variable) string {
		values, ok := toStrings(value)
		if !ok || v == nil || len(values) == 0 {
			return defaultFormat(value)
		}
		out := values[0]
		for _, val := range values[1:] {
			out += "," + v.Name + "=" + val
		}
		return out
	},
	"percentencode": func(value any, _ *Variable) string {
		if values, ok := toStrings(value); ok {
			return percentEncode("{" + strings.Join(values, ",") + "}")
		}
		return percentEncode(toString(value))
	},
	"queryparam": func(value any, v *Variable) string {
		name := ""
		if v != nil {
			name = v.Name
		}
		values, ok := toStrings(value)
		if !ok {
			values = []string{toString(value)}
		}
		params := mapStrings(values, func(s string) string { return "var-" + name + "=" + percentEncode(s) })
		return strings.Join(params, "&")
	},
	"text": func(value any, v *Variable) string {
		if v == nil || v.Current.Text == nil {
			return defaultFormat(value)
		}
		if texts, ok := toStrings(v.Current.Text); ok {
			return strings.Join(texts, " + ")
		}
		return toString(v.Current.Text)
	},
}

// FormatNames lists the registered named formats.
func FormatNames() []string {
	names := make([]string, 0, len(namedFormats))
	for name := range namedFormats {
		names = append(names, name)
	}
	return names
}

func quoteEach(value any, quote func(string) string) string {
	if values, ok := toStrings(value); ok {
		return strings.Join(mapStrings(values, quote), ",")
	}
	return quote(toString(value))
}

func mapStrings(values []string, fn func(string) string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fn(v)
	}
	return out
}

const luceneSpecials = `+-&|!(){}[]^"~*?:\/`

func luceneEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(luceneSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// percentEncode escapes everything outside the RFC 3986 unreserved set.
func percentEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&15])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}
