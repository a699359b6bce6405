package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
	"github.com/go-kit/log"
	dslog "github.com/grafana/dskit/log"
	"github.com/prometheus/common/version"

	"github.com/grafana/sqlite-datasource/pkg/output"
	"github.com/grafana/sqlite-datasource/pkg/templating"
	util_log "github.com/grafana/sqlite-datasource/pkg/util/log"
	"github.com/grafana/sqlite-datasource/pkg/varstore"
)

// globalOptions are shared by every command.
type globalOptions struct {
	variablesFile string
	logLevel      string
	outputMode    string
	template      string
	colored       bool
	systemValues  map[string]string
}

func (o *globalOptions) register(app *kingpin.Application) {
	app.Flag("variables.file", "YAML file with the dashboard variables.").Envar("SQLITE_VARS_FILE").StringVar(&o.variablesFile)
	app.Flag("log.level", "Only log messages with the given severity or above.").Default("warn").EnumVar(&o.logLevel, "debug", "info", "warn", "error")
	app.Flag("output", "Specify output mode [default, json, raw, template].").Short('o').Default(output.ModeDefault).EnumVar(&o.outputMode, output.Modes...)
	app.Flag("template", "Go template used by the template output mode, with sprig functions.").StringVar(&o.template)
	app.Flag("colored-output", "Show output with colored text.").Default("false").BoolVar(&o.colored)
	app.Flag("system-value", "Substitute a variable whose current value is KEY with VALUE.").PlaceHolder("KEY=VALUE").StringMapVar(&o.systemValues)
}

func (o *globalOptions) logger() log.Logger {
	var lvl dslog.Level
	if err := lvl.Set(o.logLevel); err != nil {
		exitWithErr(err)
	}
	util_log.InitLogger(lvl)
	return util_log.Logger
}

func (o *globalOptions) index() templating.Index {
	if o.variablesFile == "" {
		return templating.NewIndex(nil)
	}
	f, err := varstore.ReadFile(o.variablesFile)
	if err != nil {
		exitWithErr(err)
	}
	return templating.NewIndex(f.TemplatingVariables())
}

func (o *globalOptions) interpolator() *templating.Interpolator {
	opts := make([]templating.InterpolatorOption, 0, len(o.systemValues))
	for key, value := range o.systemValues {
		opts = append(opts, templating.WithSystemValue(key, value))
	}
	return templating.NewInterpolator(opts...)
}

func (o *globalOptions) optionOutput() output.OptionOutput {
	out, err := output.NewOptionOutput(o.outputMode, &output.OptionOutputOptions{
		ColoredOutput: o.colored,
		Template:      o.template,
	})
	if err != nil {
		exitWithErr(err)
	}
	return out
}

func main() {
	app := kingpin.New("sqlite-vars", "A command-line tool for resolving SQLite data source template variables.")
	app.Version(version.Print("sqlite-vars"))
	app.HelpFlag.Short('h')

	opts := &globalOptions{}
	opts.register(app)

	addInterpolateCommand(app, opts)
	addFindCommand(app, opts)
	addServeCommand(app, opts)
	app.Command("version", "Print the version information.").Action(func(_ *kingpin.ParseContext) error {
		fmt.Println(version.Print("sqlite-vars"))
		return nil
	})

	kingpin.MustParse(app.Parse(os.Args[1:]))
}

func exitWithErr(err error) {
	fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
	os.Exit(1)
}
