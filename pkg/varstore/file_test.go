package varstore

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/sqlite-datasource/pkg/templating"
)

const testFile = `
variables:
  - name: table
    current: metrics
  - name: hosts
    current: [a, b]
    format: sqlstring
  - name: port
    current: 8080
  - name: regions
    current: $__all
    include_all: true
    separator: " OR "
    options:
      - {text: All, value: $__all}
      - {text: eu, value: eu}
      - {text: us, value: us}
  - name: none
    is_none: true
`

func TestParseFile_NumbersKeepPlainForm(t *testing.T) {
	f, err := ParseFile([]byte("variables:\n  - name: limit\n    current: 1500000.0\n  - name: ids\n    current: [2000000.0, 3]\n"))
	require.NoError(t, err)

	vars := f.TemplatingVariables()
	assert.Equal(t, "1500000", vars[0].Current.Value)
	assert.Equal(t, []string{"2000000", "3"}, vars[1].Current.Value)
}

func TestParseFile(t *testing.T) {
	f, err := ParseFile([]byte(testFile))
	require.NoError(t, err)

	vars := f.TemplatingVariables()
	require.Len(t, vars, 5)

	assert.Equal(t, templating.Current{Text: "metrics", Value: "metrics"}, vars[0].Current)
	assert.Equal(t, []string{"a", "b"}, vars[1].Current.Value)
	assert.Equal(t, "sqlstring", vars[1].Format.Name())
	assert.Equal(t, "8080", vars[2].Current.Value)
	assert.Equal(t, "join( OR )", vars[3].Format.String())
	assert.True(t, vars[4].Current.IsNone)
	assert.Nil(t, vars[4].Current.Value)

	if diff := cmp.Diff([]templating.Option{
		{Text: "All", Value: "$__all"},
		{Text: "eu", Value: "eu"},
		{Text: "us", Value: "us"},
	}, vars[3].Options); diff != "" {
		t.Errorf("unexpected options (-want +got):\n%s", diff)
	}

	idx := templating.NewIndex(vars)
	assert.Equal(t,
		"SELECT * FROM metrics WHERE host IN ('a','b') AND port = 8080 AND (eu OR us)",
		templating.Interpolate("SELECT * FROM $table WHERE host IN ($hosts) AND port = $port AND ($regions)", idx, nil),
	)
}

func TestParseFile_Invalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   string
		err  string
	}{
		{
			name: "missing name",
			in:   "variables:\n  - current: a\n",
			err:  "variable 0 has no name",
		},
		{
			name: "duplicate",
			in:   "variables:\n  - name: a\n  - name: a\n",
			err:  `duplicate variable "a"`,
		},
		{
			name: "unknown format",
			in:   "variables:\n  - name: a\n    format: nope\n",
			err:  `variable "a" has unknown format "nope"`,
		},
		{
			name: "format and separator",
			in:   "variables:\n  - name: a\n    format: csv\n    separator: ','\n",
			err:  `variable "a" sets both format and separator`,
		},
		{
			name: "nested current",
			in:   "variables:\n  - name: a\n    current: {x: y}\n",
			err:  `variable "a": current must be a string or a list of strings`,
		},
		{
			name: "unknown field",
			in:   "variables:\n  - name: a\n    bogus: true\n",
			err:  "parsing variables file",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFile([]byte(tc.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}
