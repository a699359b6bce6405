package templating

import (
	"strings"

	"github.com/grafana/regexp"
)

// placeholderRegex matches $name, [[name]] / [[name:format]] and ${name} / ${name:format}.
// Stored dashboards depend on it, do not change it.
var placeholderRegex = regexp.MustCompile(`\$(\w+)|\[\[([\s\S]+?)(?::(\w+))?\]\]|\$\{(\w+)(?::(\w+))?\}`)

// maxAllValueDepth bounds re-interpolation of custom all values.
const maxAllValueDepth = 5

// Placeholder is one parsed occurrence of a variable in text.
type Placeholder struct {
	// Match is the full matched text, e.g. "${host:csv}".
	Match  string
	Name   string
	Format string
	Start  int
	End    int
}

// Placeholders returns every placeholder in text, left to right.
func Placeholders(text string) []Placeholder {
	matches := placeholderRegex.FindAllStringSubmatchIndex(text, -1)
	out := make([]Placeholder, 0, len(matches))
	for _, m := range matches {
		out = append(out, toPlaceholder(text, m))
	}
	return out
}

func toPlaceholder(text string, m []int) Placeholder {
	group := func(i int) string {
		if m[2*i] < 0 {
			return ""
		}
		return text[m[2*i]:m[2*i+1]]
	}

	p := Placeholder{Match: text[m[0]:m[1]], Start: m[0], End: m[1]}
	switch {
	case m[2] >= 0:
		p.Name = group(1)
	case m[4] >= 0:
		p.Name, p.Format = group(2), group(3)
	default:
		p.Name, p.Format = group(4), group(5)
	}
	return p
}

// Interpolator replaces placeholders in query text. It holds no per call state
// and is safe for concurrent use.
type Interpolator struct {
	// systemValues maps current values that have an alternate system
	// representation to that representation.
	systemValues map[string]any
}

// InterpolatorOption configures an Interpolator.
type InterpolatorOption func(*Interpolator)

// WithSystemValue registers an alternate representation for variables whose
// current value is key.
func WithSystemValue(key string, value any) InterpolatorOption {
	return func(i *Interpolator) {
		i.systemValues[key] = value
	}
}

// NewInterpolator returns an Interpolator.
func NewInterpolator(opts ...InterpolatorOption) *Interpolator {
	i := &Interpolator{systemValues: map[string]any{}}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

var defaultInterpolator = NewInterpolator()

// Interpolate replaces placeholders in text using a default Interpolator.
func Interpolate(text string, index Index, scopedVars ScopedVars) string {
	return defaultInterpolator.Interpolate(text, index, scopedVars)
}

// Interpolate replaces every recognized placeholder in text. Placeholders that
// cannot be resolved are left as they are.
func (i *Interpolator) Interpolate(text string, index Index, scopedVars ScopedVars) string {
	return i.InterpolateWithFormat(text, index, scopedVars, Identity())
}

// InterpolateWithFormat is like Interpolate, using format for placeholders
// that carry no format specifier of their own.
func (i *Interpolator) InterpolateWithFormat(text string, index Index, scopedVars ScopedVars, format Format) string {
	return i.replace(text, index, scopedVars, format, 0)
}

func (i *Interpolator) replace(text string, index Index, scopedVars ScopedVars, format Format, depth int) string {
	if text == "" {
		return text
	}

	matches := placeholderRegex.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		b.WriteString(i.resolve(toPlaceholder(text, m), index, scopedVars, format, depth))
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

func (i *Interpolator) resolve(p Placeholder, index Index, scopedVars ScopedVars, callFormat Format, depth int) string {
	variable, found := index.Get(p.Name)
	format := resolveFormat(p.Format, callFormat, variable)

	if scoped, ok := scopedVars[p.Name]; ok {
		return format.Apply(scoped.Value, variable)
	}

	if !found {
		return p.Match
	}

	if key, ok := variable.Current.Value.(string); ok {
		if systemValue, ok := i.systemValues[key]; ok {
			return format.Apply(systemValue, variable)
		}
	}

	value := variable.Current.Value
	if variable.IsAllSelected() {
		if variable.AllValue != "" {
			// custom all values are not formatted
			if depth >= maxAllValueDepth {
				return variable.AllValue
			}
			return i.replace(variable.AllValue, index, nil, Identity(), depth+1)
		}
		value = variable.allValues()
	}

	return format.Apply(value, variable)
}

func resolveFormat(specifier string, callFormat Format, variable *Variable) Format {
	switch {
	case specifier != "":
		return Named(specifier)
	case !callFormat.IsIdentity():
		return callFormat
	case variable != nil:
		return variable.Format
	}
	return Identity()
}

// Unresolved returns the names of placeholders in text that neither scopedVars
// nor index can resolve.
func Unresolved(text string, index Index, scopedVars ScopedVars) []string {
	var (
		out  []string
		seen = map[string]struct{}{}
	)
	for _, p := range Placeholders(text) {
		if _, ok := scopedVars[p.Name]; ok {
			continue
		}
		if _, ok := index.Get(p.Name); ok {
			continue
		}
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		out = append(out, p.Name)
	}
	return out
}
