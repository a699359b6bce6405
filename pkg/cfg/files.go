package cfg

import (
	"flag"
	"io"
	"os"
	"strings"

	"github.com/drone/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// YAML returns a Source that opens the supplied `.yaml` file and loads it.
// When expandEnv is true, ${VAR} references are replaced with the values of
// the environment variables before parsing.
func YAML(f string, expandEnv bool) Source {
	return func(dst Cloneable) error {
		y, err := os.ReadFile(f)
		if err != nil {
			return errors.Wrap(err, "Error reading config file")
		}

		if expandEnv {
			s, err := envsubst.EvalEnv(string(y))
			if err != nil {
				return errors.Wrap(err, "Error expanding environment variables in config file")
			}
			y = []byte(s)
		}

		err = yaml.UnmarshalStrict(y, dst)
		return errors.Wrap(err, "Error parsing config file")
	}
}

// dYAML returns a YAML source and allows dependency injection
func dYAML(y []byte) Source {
	return func(dst Cloneable) error {
		return yaml.UnmarshalStrict(y, dst)
	}
}

// ConfigFileLoader looks up the flag called name in args and loads every comma
// separated file it names, honoring the config.expand-env flag.
func ConfigFileLoader(args []string, name string) Source {
	return func(dst Cloneable) error {
		freshFlags := flag.NewFlagSet("config-file-loader", flag.ContinueOnError)
		freshFlags.SetOutput(io.Discard)

		// register on a copy so parsing the file location leaves dst untouched
		c := dst.Clone()
		c.RegisterFlags(freshFlags)

		// unknown flags end up in the positional arguments, which is fine here
		_ = freshFlags.Parse(args)

		f := freshFlags.Lookup(name)
		if f == nil {
			return errors.Errorf("flag %q not registered", name)
		}

		expandEnv := false
		if e := freshFlags.Lookup("config.expand-env"); e != nil {
			expandEnv = e.Value.String() == "true"
		}

		value := f.Value.String()
		if value == "" {
			return nil
		}
		for _, file := range strings.Split(value, ",") {
			if err := YAML(file, expandEnv)(dst); err != nil {
				return err
			}
		}
		return nil
	}
}
