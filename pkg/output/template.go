package output

import (
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/pkg/errors"

	"github.com/grafana/sqlite-datasource/pkg/metricfind"
)

// TemplateOutput renders every option with a user supplied template.
type TemplateOutput struct {
	options *OptionOutputOptions
	tmpl    *template.Template
}

func newTemplateOutput(options *OptionOutputOptions) (*TemplateOutput, error) {
	if options.Template == "" {
		return nil, errors.New("template output requires a template")
	}
	tmpl, err := template.New("option").Option("missingkey=zero").Funcs(sprig.TxtFuncMap()).Parse(options.Template)
	if err != nil {
		return nil, errors.Wrap(err, "parsing output template")
	}
	return &TemplateOutput{options: options, tmpl: tmpl}, nil
}

// FormatOption implements OptionOutput.
func (o *TemplateOutput) FormatOption(opt metricfind.OptionPair) (string, error) {
	var b strings.Builder
	if err := o.tmpl.Execute(&b, opt); err != nil {
		return "", errors.Wrap(err, "executing output template")
	}
	return b.String(), nil
}
