package cfg

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	return flag.NewFlagSet("test", flag.ContinueOnError)
}

func TestDefaults(t *testing.T) {
	var d Data
	err := Unmarshal(&d, Defaults(newFlagSet()))
	require.NoError(t, err)
	assert.Equal(t, Data{
		Verbose: false,
		Server: Server{
			Port:    80,
			Timeout: 60 * time.Second,
		},
		TLS: TLS{
			Cert: "CERT",
			Key:  "KEY",
		},
	}, d)
}

func TestFlagsMerge(t *testing.T) {
	fs := newFlagSet()

	var c Data
	err := Unmarshal(&c,
		Defaults(fs),
		dFlags(fs, []string{"-verbose", "-server.timeout=12h"}),
	)
	require.NoError(t, err)
	assert.Equal(t, Data{
		Verbose: true,
		Server: Server{
			Port:    80,
			Timeout: 12 * time.Hour,
		},
		TLS: TLS{
			Cert: "CERT",
			Key:  "KEY",
		},
	}, c)
}

func TestParse(t *testing.T) {
	fs := newFlagSet()

	var c Data
	err := Unmarshal(&c,
		Defaults(fs),
		dYAML([]byte(`
server:
  port: 2000
  timeout: 60h
tls:
  key: YAML
`)),
		dFlags(fs, []string{"-verbose", "-server.port=21"}),
	)
	require.NoError(t, err)

	require.Equal(t, Data{
		Verbose: true,
		Server: Server{
			Port:    21,
			Timeout: 60 * time.Hour,
		},
		TLS: TLS{
			Cert: "CERT",
			Key:  "YAML",
		},
	}, c)
}

func TestYAML_UnknownField(t *testing.T) {
	var c Data
	err := Unmarshal(&c, dYAML([]byte("unknown: true\n")))
	require.Error(t, err)
}

func TestDefaultUnmarshal_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.yaml")
	second := filepath.Join(dir, "second.yaml")
	require.NoError(t, os.WriteFile(first, []byte("server:\n  port: 1000\ntls:\n  cert: ${CFG_TEST_CERT}\n"), 0o600))
	require.NoError(t, os.WriteFile(second, []byte("server:\n  port: 2000\n"), 0o600))

	t.Setenv("CFG_TEST_CERT", "from-env")

	testCases := []struct {
		name     string
		args     []string
		expected Data
	}{
		{
			name: "no config file",
			args: []string{"-tls.key=flag"},
			expected: Data{
				Server: Server{Port: 80, Timeout: time.Minute},
				TLS:    TLS{Cert: "CERT", Key: "flag"},
			},
		},
		{
			name: "single file without env expansion",
			args: []string{"-config.file=" + first},
			expected: Data{
				Server:      Server{Port: 1000, Timeout: time.Minute},
				TLS:         TLS{Cert: "${CFG_TEST_CERT}", Key: "KEY"},
				ConfigFiles: []string{first},
			},
		},
		{
			name: "env expansion and flag override",
			args: []string{"-config.file=" + first, "-config.expand-env", "-server.port=3"},
			expected: Data{
				Server:      Server{Port: 3, Timeout: time.Minute},
				TLS:         TLS{Cert: "from-env", Key: "KEY"},
				ConfigFiles: []string{first},
				ExpandEnv:   true,
			},
		},
		{
			name: "later files win",
			args: []string{"-config.file=" + first, "-config.file=" + second},
			expected: Data{
				Server:      Server{Port: 2000, Timeout: time.Minute},
				TLS:         TLS{Cert: "${CFG_TEST_CERT}", Key: "KEY"},
				ConfigFiles: []string{first, second},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var c Data
			require.NoError(t, DefaultUnmarshal(&c, tc.args, newFlagSet()))
			assert.Equal(t, tc.expected, c)
		})
	}
}

func TestConfigFileLoader_MissingFile(t *testing.T) {
	var c Data
	err := DefaultUnmarshal(&c, []string{"-config.file=/does/not/exist.yaml"}, newFlagSet())
	assert.ErrorContains(t, err, "Error reading config file")
}
