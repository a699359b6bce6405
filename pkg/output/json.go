package output

import (
	json "github.com/json-iterator/go"

	"github.com/grafana/sqlite-datasource/pkg/metricfind"
)

// JSONOutput prints one JSON object per option.
type JSONOutput struct {
	options *OptionOutputOptions
}

// FormatOption implements OptionOutput.
func (o *JSONOutput) FormatOption(opt metricfind.OptionPair) (string, error) {
	return json.ConfigCompatibleWithStandardLibrary.MarshalToString(opt)
}
