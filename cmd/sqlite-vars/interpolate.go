package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
	json "github.com/json-iterator/go"

	"github.com/grafana/sqlite-datasource/pkg/macros"
	"github.com/grafana/sqlite-datasource/pkg/output"
	"github.com/grafana/sqlite-datasource/pkg/templating"
)

// interpolateCommand prints a query with every template variable replaced.
type interpolateCommand struct {
	opts *globalOptions

	query      string
	format     string
	scopedVars map[string]string
	from, to   string
}

func addInterpolateCommand(app *kingpin.Application, opts *globalOptions) {
	cmd := &interpolateCommand{opts: opts}
	c := app.Command("interpolate", "Replace template variables in a query.")
	c.Arg("query", "Query text with template variables.").Required().StringVar(&cmd.query)
	c.Flag("format", "Format for placeholders without an explicit format.").EnumVar(&cmd.format, templating.FormatNames()...)
	c.Flag("var", "Scoped variable overriding the variables file.").PlaceHolder("NAME=VALUE").StringMapVar(&cmd.scopedVars)
	c.Flag("from", "Start of the time range, RFC3339 or epoch milliseconds. Expands time variables and macros.").StringVar(&cmd.from)
	c.Flag("to", "End of the time range, RFC3339 or epoch milliseconds.").Default("now").StringVar(&cmd.to)
	c.Action(cmd.run)
}

func (cmd *interpolateCommand) run(_ *kingpin.ParseContext) error {
	idx := cmd.opts.index()
	scoped := toScopedVars(cmd.scopedVars)

	format := templating.Identity()
	if cmd.format != "" {
		format = templating.Named(cmd.format)
	}
	query := cmd.opts.interpolator().InterpolateWithFormat(cmd.query, idx, scoped, format)

	tr, err := parseRange(cmd.from, cmd.to)
	if err != nil {
		return err
	}
	var res macros.Result
	if tr != nil {
		res, err = macros.Apply(macros.ReplaceTimeVariables(query, *tr), *tr)
		if err != nil {
			return err
		}
		query = res.Query
	}

	unresolved := []string{}
	for _, name := range templating.Unresolved(cmd.query, idx, scoped) {
		if !strings.HasPrefix(name, "__") {
			unresolved = append(unresolved, name)
		}
	}

	if cmd.opts.outputMode == output.ModeJSON {
		out, err := json.ConfigCompatibleWithStandardLibrary.MarshalToString(map[string]interface{}{
			"query":            query,
			"unresolved":       unresolved,
			"fillInterval":     res.FillInterval,
			"shouldFillValues": res.ShouldFillValues,
		})
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	fmt.Println(query)
	if len(unresolved) > 0 {
		fmt.Fprintln(os.Stderr, color.YellowString("unresolved variables: %s", strings.Join(unresolved, ", ")))
	}
	return nil
}
