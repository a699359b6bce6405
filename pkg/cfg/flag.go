package cfg

import (
	"flag"
	"fmt"
	"sort"
	"strings"
)

// Defaults registers the flags of dst on fs and applies their default values.
func Defaults(fs *flag.FlagSet) Source {
	return func(dst Cloneable) error {
		dst.RegisterFlags(fs)
		return fs.Parse([]string{})
	}
}

// Flags parses the flag set again with the real arguments. Only flags present
// in args overwrite values set by earlier sources.
func Flags(args []string, fs *flag.FlagSet) Source {
	fs.Usage = categorizedUsage(fs)
	return dFlags(fs, args)
}

// dFlags parses the flagset, applying all values set on the command line.
func dFlags(fs *flag.FlagSet, args []string) Source {
	return func(_ Cloneable) error {
		return fs.Parse(args)
	}
}

// categorizedUsage prints the flags grouped by their first dotted segment.
func categorizedUsage(fs *flag.FlagSet) func() {
	return func() {
		categories := make(map[string][]string)
		fs.VisitAll(func(f *flag.Flag) {
			id := ""
			if strings.Contains(f.Name, ".") {
				id = strings.Split(f.Name, ".")[0]
			}

			kind, usage := flag.UnquoteUsage(f)
			if kind != "" {
				kind = " " + kind
			}
			def := f.DefValue
			if def != "" {
				def = fmt.Sprintf(" (default %s)", def)
			}
			categories[id] = append(categories[id], fmt.Sprintf("   -%s%s:\n      %s%s", f.Name, kind, usage, def))
		})

		names := make([]string, 0, len(categories))
		for name := range categories {
			names = append(names, name)
		}
		sort.Strings(names)

		out := fs.Output()
		for _, name := range names {
			if name != "" {
				fmt.Fprintf(out, " %s:\n", name)
			}
			for _, line := range categories[name] {
				fmt.Fprintln(out, line)
			}
		}
	}
}
