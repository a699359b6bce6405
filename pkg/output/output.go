package output

import (
	"fmt"
	"io"
	"os"

	"github.com/grafana/sqlite-datasource/pkg/metricfind"
)

// Supported output modes.
const (
	ModeDefault  = "default"
	ModeJSON     = "json"
	ModeRaw      = "raw"
	ModeTemplate = "template"
)

// Modes lists the supported output modes.
var Modes = []string{ModeDefault, ModeJSON, ModeRaw, ModeTemplate}

// OptionOutput is the interface any output mode must implement
type OptionOutput interface {
	FormatOption(o metricfind.OptionPair) (string, error)
}

// OptionOutputOptions defines options supported by OptionOutput
type OptionOutputOptions struct {
	ColoredOutput bool
	// Template is the text/template used by the template mode. The option is
	// available as .Text and .Value.
	Template string
}

// NewOptionOutput creates an option output based on the input mode and options
func NewOptionOutput(mode string, options *OptionOutputOptions) (OptionOutput, error) {
	if options == nil {
		options = &OptionOutputOptions{}
	}

	switch mode {
	case ModeDefault:
		return newDefaultOutput(options), nil
	case ModeJSON:
		return &JSONOutput{options: options}, nil
	case ModeRaw:
		return &RawOutput{options: options}, nil
	case ModeTemplate:
		return newTemplateOutput(options)
	default:
		return nil, fmt.Errorf("unknown output mode %q", mode)
	}
}

// WriteOptions formats every option and writes one line per option to w.
func WriteOptions(w io.Writer, out OptionOutput, options []metricfind.OptionPair) error {
	if w == nil {
		w = os.Stdout
	}
	for _, o := range options {
		line, err := out.FormatOption(o)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func valueString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
