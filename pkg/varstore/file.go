package varstore

import (
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/grafana/sqlite-datasource/pkg/templating"
)

// File is the on-disk description of the dashboard variables.
type File struct {
	Variables []VariableConfig `yaml:"variables"`
}

// VariableConfig describes one variable. Current may be a string or a list of
// strings.
type VariableConfig struct {
	Name       string         `yaml:"name"`
	Current    interface{}    `yaml:"current"`
	Text       interface{}    `yaml:"text,omitempty"`
	IsNone     bool           `yaml:"is_none,omitempty"`
	Options    []OptionConfig `yaml:"options,omitempty"`
	IncludeAll bool           `yaml:"include_all,omitempty"`
	AllValue   string         `yaml:"all_value,omitempty"`

	// Format is the name of the default format. Separator, when set, joins
	// multi values with it instead.
	Format    string  `yaml:"format,omitempty"`
	Separator *string `yaml:"separator,omitempty"`
}

type OptionConfig struct {
	Text     string `yaml:"text"`
	Value    string `yaml:"value"`
	Selected bool   `yaml:"selected,omitempty"`
}

// ParseFile parses and validates a variables file.
func ParseFile(buf []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(buf, &f); err != nil {
		return nil, errors.Wrap(err, "parsing variables file")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ReadFile reads and parses the variables file at path.
func ReadFile(path string) (*File, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading variables file")
	}
	return ParseFile(buf)
}

// Validate checks names are set and unique and that formats are known.
func (f *File) Validate() error {
	seen := make(map[string]struct{}, len(f.Variables))
	known := templating.FormatNames()
	for i, v := range f.Variables {
		if v.Name == "" {
			return fmt.Errorf("variable %d has no name", i)
		}
		if _, ok := seen[v.Name]; ok {
			return fmt.Errorf("duplicate variable %q", v.Name)
		}
		seen[v.Name] = struct{}{}

		if v.Format != "" && v.Separator != nil {
			return fmt.Errorf("variable %q sets both format and separator", v.Name)
		}
		if v.Format != "" && !slices.Contains(known, v.Format) {
			return fmt.Errorf("variable %q has unknown format %q", v.Name, v.Format)
		}
		if _, ok := normalize(v.Current); !ok {
			return fmt.Errorf("variable %q: current must be a string or a list of strings", v.Name)
		}
	}
	return nil
}

// TemplatingVariables converts the file into templating variables.
func (f *File) TemplatingVariables() []templating.Variable {
	vars := make([]templating.Variable, 0, len(f.Variables))
	for _, v := range f.Variables {
		value, _ := normalize(v.Current)
		text, ok := normalize(v.Text)
		if !ok || text == nil {
			text = value
		}

		variable := templating.Variable{
			Name: v.Name,
			Current: templating.Current{
				Text:   text,
				Value:  value,
				IsNone: v.IsNone,
			},
			AllValue:   v.AllValue,
			IncludeAll: v.IncludeAll,
		}
		for _, o := range v.Options {
			variable.Options = append(variable.Options, templating.Option{Text: o.Text, Value: o.Value, Selected: o.Selected})
		}

		switch {
		case v.Separator != nil:
			variable.Format = templating.Join(*v.Separator)
		case v.Format != "":
			variable.Format = templating.Named(v.Format)
		}
		vars = append(vars, variable)
	}
	return vars
}

// normalize turns a YAML scalar or sequence into a string or []string.
func normalize(v interface{}) (interface{}, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case string:
		return t, true
	case []interface{}:
		values := make([]string, 0, len(t))
		for _, e := range t {
			switch e.(type) {
			case map[interface{}]interface{}, []interface{}:
				return nil, false
			}
			values = append(values, scalarString(e))
		}
		return values, true
	case map[interface{}]interface{}:
		return nil, false
	}
	return scalarString(v), true
}

func scalarString(v interface{}) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
