package output

import "github.com/grafana/sqlite-datasource/pkg/metricfind"

// RawOutput prints the value of an option, or its text when it has no value.
type RawOutput struct {
	options *OptionOutputOptions
}

// FormatOption implements OptionOutput.
func (o *RawOutput) FormatOption(opt metricfind.OptionPair) (string, error) {
	if opt.Value != nil {
		return valueString(opt.Value), nil
	}
	return valueString(opt.Text), nil
}
