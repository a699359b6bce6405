package app

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type diffConfigMock struct {
	MyInt          int          `yaml:"my_int"`
	MyFloat        float64      `yaml:"my_float"`
	MySlice        []string     `yaml:"my_slice"`
	IgnoredField   func() error `yaml:"-"`
	MyNestedStruct struct {
		MyString      string   `yaml:"my_string"`
		MyBool        bool     `yaml:"my_bool"`
		MyEmptyStruct struct{} `yaml:"my_empty_struct"`
	} `yaml:"my_nested_struct"`
}

func newDefaultDiffConfigMock() *diffConfigMock {
	c := &diffConfigMock{
		MyInt:        666,
		MyFloat:      6.66,
		MySlice:      []string{"value1", "value2"},
		IgnoredField: func() error { return nil },
	}
	c.MyNestedStruct.MyString = "string1"
	return c
}

func TestConfigDiffHandler(t *testing.T) {
	for _, tc := range []struct {
		name               string
		expectedStatusCode int
		expectedBody       string
		actualConfig       func() *diffConfigMock
	}{
		{
			name:               "no config parameters overridden",
			expectedStatusCode: 200,
			expectedBody:       "{}\n",
		},
		{
			name: "slice changed",
			actualConfig: func() *diffConfigMock {
				c := newDefaultDiffConfigMock()
				c.MySlice = append(c.MySlice, "value3")
				return c
			},
			expectedStatusCode: 200,
			expectedBody: "my_slice:\n" +
				"- value1\n" +
				"- value2\n" +
				"- value3\n",
		},
		{
			name: "string in nested struct changed",
			actualConfig: func() *diffConfigMock {
				c := newDefaultDiffConfigMock()
				c.MyNestedStruct.MyString = "string2"
				return c
			},
			expectedStatusCode: 200,
			expectedBody: "my_nested_struct:\n" +
				"  my_string: string2\n",
		},
		{
			name: "bool in nested struct changed",
			actualConfig: func() *diffConfigMock {
				c := newDefaultDiffConfigMock()
				c.MyNestedStruct.MyBool = true
				return c
			},
			expectedStatusCode: 200,
			expectedBody: "my_nested_struct:\n" +
				"  my_bool: true\n",
		},
		{
			name: "several fields changed",
			actualConfig: func() *diffConfigMock {
				return &diffConfigMock{MyInt: 1}
			},
			expectedStatusCode: 200,
			expectedBody: "my_float: 0\n" +
				"my_int: 1\n" +
				"my_nested_struct:\n" +
				"  my_string: \"\"\n" +
				"my_slice: []\n",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			defaultCfg := newDefaultDiffConfigMock()
			actualCfg := newDefaultDiffConfigMock()
			if tc.actualConfig != nil {
				actualCfg = tc.actualConfig()
			}

			req := httptest.NewRequest("GET", "http://test.com/config?mode=diff", nil)
			w := httptest.NewRecorder()

			h := configHandler(actualCfg, defaultCfg)
			h(w, req)
			resp := w.Result()
			assert.Equal(t, tc.expectedStatusCode, resp.StatusCode)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedBody, string(body))
		})
	}
}

type sectionedConfigMock struct {
	Name    string            `yaml:"name"`
	Secrets map[string]string `yaml:"secrets"`
	Server  struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func TestConfigHandler_SectionsAndRedaction(t *testing.T) {
	actual := &sectionedConfigMock{Name: "a", Secrets: map[string]string{"$__user": "admin"}}
	actual.Server.Port = 9000
	h := configHandler(actual, &sectionedConfigMock{}, "secrets")

	for _, tc := range []struct {
		query        string
		expectedCode int
		expectedBody string
	}{
		{"section=server", 200, "server:\n  port: 9000\n"},
		{"section=secrets", 200, "secrets:\n  $__user: '********'\n"},
		{"mode=diff&section=secrets", 200, "secrets:\n  $__user: '********'\n"},
		{"section=missing", 404, "no config section \"missing\"\n"},
		{"mode=everything", 400, "unknown mode \"everything\", expected diff or defaults\n"},
	} {
		t.Run(tc.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest("GET", "http://test.com/config?"+tc.query, nil))
			assert.Equal(t, tc.expectedCode, w.Code)
			assert.Equal(t, tc.expectedBody, w.Body.String())
		})
	}

	// the running config itself is left untouched
	assert.Equal(t, "admin", actual.Secrets["$__user"])
}

func TestConfigHandler_Modes(t *testing.T) {
	actual := newDefaultDiffConfigMock()
	actual.MyInt = 1
	h := configHandler(actual, newDefaultDiffConfigMock())

	for mode, expected := range map[string]string{
		"":         "my_int: 1\n",
		"defaults": "my_int: 666\n",
	} {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest("GET", "http://test.com/config?mode="+mode, nil))
		assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), expected)
	}
}
