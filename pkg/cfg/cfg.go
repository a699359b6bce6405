package cfg

import (
	"flag"
	"fmt"
	"os"
	"reflect"

	"github.com/grafana/dskit/flagext"
	"github.com/pkg/errors"
)

// Cloneable is a config that can register its flags and produce an empty copy
// of itself. The copy is used to look up flag values without mutating the
// destination.
type Cloneable interface {
	flagext.Registerer
	Clone() flagext.Registerer
}

// Source is a generic configuration source. This function may do whatever is
// required to obtain the configuration. It is passed a pointer to the
// destination, which will be something compatible to `yaml.Unmarshal`. The
// obtained configuration may be written to this object, it may also contain
// data from previous sources.
type Source func(Cloneable) error

// Unmarshal merges the values of the various configuration sources and sets them on
// `dst`. The object must be compatible with `yaml.Unmarshal`.
func Unmarshal(dst Cloneable, sources ...Source) error {
	if len(sources) == 0 {
		panic("No sources supplied to cfg.Unmarshal(). This is most likely a programming issue and should never happen. Check the code!")
	}
	if reflect.ValueOf(dst).Kind() != reflect.Ptr {
		panic("dst not a pointer")
	}

	for _, source := range sources {
		if err := source(dst); err != nil {
			return errors.Wrap(err, "sourcing")
		}
	}
	return nil
}

// DefaultUnmarshal applies flag defaults, then the files named by the
// -config.file flag, then the flags given in args. Later sources win.
func DefaultUnmarshal(dst Cloneable, args []string, fs *flag.FlagSet) error {
	return Unmarshal(dst,
		Defaults(fs),
		ConfigFileLoader(args, "config.file"),
		Flags(args, fs),
	)
}

// Parse is DefaultUnmarshal over the process arguments and the default flag set.
// It exits the process when the configuration cannot be loaded.
func Parse(dst Cloneable) {
	if err := DefaultUnmarshal(dst, os.Args[1:], flag.CommandLine); err != nil {
		fmt.Fprintf(os.Stderr, "failed parsing config: %v\n", err)
		os.Exit(1)
	}
}
