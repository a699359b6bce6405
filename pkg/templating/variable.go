package templating

import (
	"fmt"
	"sort"
	"strconv"
)

// AllValue is the sentinel current value meaning every option of a variable is selected.
const AllValue = "$__all"

// Current is the active selection of a variable. Value is either a string or a
// list of strings.
type Current struct {
	Text   any
	Value  any
	IsNone bool
}

// Option is one selectable value of a variable.
type Option struct {
	Text     string `json:"text"`
	Value    string `json:"value"`
	Selected bool   `json:"selected,omitempty"`
}

// Variable is a dashboard template variable as known to the host.
type Variable struct {
	Name    string
	Current Current
	Options []Option

	// AllValue, when set, is substituted instead of the option list when
	// every value is selected. It may itself contain placeholders.
	AllValue   string
	IncludeAll bool

	// Format is used when neither the placeholder nor the caller asks for one.
	Format Format
}

// IsAllSelected reports whether the current value denotes "all values".
func (v *Variable) IsAllSelected() bool {
	return isAllValue(v.Current.Value)
}

func isAllValue(value any) bool {
	switch v := value.(type) {
	case string:
		return v == AllValue
	case []string:
		return len(v) > 0 && v[0] == AllValue
	case []any:
		return len(v) > 0 && v[0] == AllValue
	}
	return false
}

// allValues returns the canonical "all values" representation: every option
// value except the all option itself.
func (v *Variable) allValues() []string {
	values := make([]string, 0, len(v.Options))
	for _, o := range v.Options {
		if o.Value == AllValue {
			continue
		}
		values = append(values, o.Value)
	}
	return values
}

// ScopedVar is a per call override of a placeholder value.
type ScopedVar struct {
	Text  any `json:"text,omitempty" yaml:"text,omitempty"`
	Value any `json:"value" yaml:"value"`
}

// ScopedVars maps placeholder names to overrides. Scoped values win over the index.
type ScopedVars map[string]ScopedVar

// Index is an immutable snapshot of the host variables keyed by name.
type Index struct {
	vars map[string]*Variable
}

// NewIndex builds an index from the host variable list. Variables without a
// current value are left out unless their selection is explicitly "none".
// Later variables win over earlier ones with the same name.
func NewIndex(variables []Variable) Index {
	idx := Index{vars: make(map[string]*Variable, len(variables))}
	for i := range variables {
		v := variables[i]
		if !v.Current.IsNone && isEmptyValue(v.Current.Value) {
			continue
		}
		idx.vars[v.Name] = &v
	}
	return idx
}

// Get returns the variable with the given name.
func (i Index) Get(name string) (*Variable, bool) {
	v, ok := i.vars[name]
	return v, ok
}

// Len returns the number of indexed variables.
func (i Index) Len() int {
	return len(i.vars)
}

// Names returns the indexed variable names in sorted order.
func (i Index) Names() []string {
	names := make([]string, 0, len(i.vars))
	for name := range i.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	return false
}

// toString renders a scalar the way it appears in query text.
func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.FormatInt(int64(v), 10)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(value)
}

// toStrings flattens a value into its list form. ok is false for scalars.
func toStrings(value any) (values []string, ok bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		values = make([]string, 0, len(v))
		for _, e := range v {
			values = append(values, toString(e))
		}
		return values, true
	}
	return nil, false
}
