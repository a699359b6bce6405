// Package macros expands the $__name(args) query macros and the time range
// variables understood by the SQLite backend.
package macros

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/grafana/regexp"
)

var macroRegex = regexp.MustCompile(`\$__([_a-zA-Z0-9]+)\(([^\)]*)\)`)

// TimeRange is the dashboard time range a query is evaluated for.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Result is a query with all macros expanded.
type Result struct {
	Query string

	// FillInterval is the grouping interval in seconds requested by
	// $__unixEpochGroupSeconds.
	FillInterval int
	// ShouldFillValues is set when the grouping macro asks for NULL gap filling.
	ShouldFillValues bool
}

// ReplaceTimeVariables replaces $__from and $__to with the range bounds in
// epoch milliseconds.
func ReplaceTimeVariables(query string, tr TimeRange) string {
	query = strings.ReplaceAll(query, "$__from", strconv.FormatInt(tr.From.Unix()*1000, 10))
	return strings.ReplaceAll(query, "$__to", strconv.FormatInt(tr.To.Unix()*1000, 10))
}

// Apply expands every known macro in query. Unknown macros are kept as they are.
func Apply(query string, tr TimeRange) (Result, error) {
	res := Result{}

	var b strings.Builder
	last := 0
	for _, m := range macroRegex.FindAllStringSubmatchIndex(query, -1) {
		name, args := query[m[2]:m[3]], strings.Split(query[m[4]:m[5]], ",")

		var (
			replaced string
			err      error
		)
		switch name {
		case "timeFilter":
			replaced, err = timeFilter(tr, args)
		case "unixEpochGroupSeconds":
			replaced, err = unixEpochGroupSeconds(&res, args)
		default:
			replaced = query[m[0]:m[1]]
		}
		if err != nil {
			return Result{}, err
		}

		b.WriteString(query[last:m[0]])
		b.WriteString(replaced)
		last = m[1]
	}
	b.WriteString(query[last:])

	res.Query = b.String()
	return res, nil
}

func timeFilter(tr TimeRange, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("unsupported number of arguments (%d) for timeFilter", len(args))
	}

	return fmt.Sprintf(
		`CAST(CASE WHEN typeof(%[1]s) = 'integer' THEN %[1]s ELSE strftime("%%s", %[1]s) END AS INTEGER) BETWEEN %[2]d AND %[3]d`,
		args[0],
		tr.From.Unix(),
		tr.To.Unix(),
	), nil
}

func unixEpochGroupSeconds(res *Result, args []string) (string, error) {
	if len(args) < 2 || len(args) > 3 {
		return "", fmt.Errorf("unsupported number of arguments (%d) for unixEpochGroupSeconds", len(args))
	}

	interval, err := strconv.Atoi(strings.TrimSpace(args[1]))
	if err != nil {
		return "", fmt.Errorf("could not convert '%s' to an integer grouping interval", args[1])
	}
	if interval <= 0 {
		return "", fmt.Errorf("grouping interval must be positive, got %d", interval)
	}
	res.FillInterval = interval

	if len(args) == 3 {
		if strings.ToLower(strings.TrimSpace(args[2])) != "null" {
			return "", fmt.Errorf("unsupported gap filling value of: `%s`", args[2])
		}
		res.ShouldFillValues = true
	}

	return fmt.Sprintf("cast((%s / %d) as int) * %d", args[0], interval, interval), nil
}
