package output

import (
	"github.com/fatih/color"

	"github.com/grafana/sqlite-datasource/pkg/metricfind"
)

// DefaultOutput prints the option text followed by its value when the two
// differ.
type DefaultOutput struct {
	options *OptionOutputOptions
	text    *color.Color
	value   *color.Color
}

func newDefaultOutput(options *OptionOutputOptions) *DefaultOutput {
	o := &DefaultOutput{
		options: options,
		text:    color.New(color.FgBlue),
		value:   color.New(color.FgYellow),
	}
	if options.ColoredOutput {
		o.text.EnableColor()
		o.value.EnableColor()
	} else {
		o.text.DisableColor()
		o.value.DisableColor()
	}
	return o
}

// FormatOption implements OptionOutput.
func (o *DefaultOutput) FormatOption(opt metricfind.OptionPair) (string, error) {
	text := valueString(opt.Text)
	if opt.Value == nil || valueString(opt.Value) == text {
		return o.text.Sprint(text), nil
	}
	return o.text.Sprint(text) + "\t" + o.value.Sprint(valueString(opt.Value)), nil
}
