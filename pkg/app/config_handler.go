package app

import (
	"fmt"
	"net/http"
	"reflect"

	"gopkg.in/yaml.v2"
)

const redactedValue = "********"

type yamlMap = map[interface{}]interface{}

// toYAMLMap renders a config struct as the generic map its YAML form decodes to.
func toYAMLMap(in interface{}) (yamlMap, error) {
	buf, err := yaml.Marshal(in)
	if err != nil {
		return nil, err
	}
	out := yamlMap{}
	if err := yaml.Unmarshal(buf, out); err != nil {
		return nil, err
	}
	return out, nil
}

// diffConfig keeps the entries of actual that differ from defaults. Nested
// sections are compared key by key and dropped when nothing in them changed.
func diffConfig(defaults, actual yamlMap) yamlMap {
	out := yamlMap{}
	for key, value := range actual {
		def, ok := defaults[key]
		if !ok {
			out[key] = value
			continue
		}

		section, isSection := value.(yamlMap)
		defSection, defIsSection := def.(yamlMap)
		if isSection && defIsSection {
			if diff := diffConfig(defSection, section); len(diff) > 0 {
				out[key] = diff
			}
			continue
		}
		if !reflect.DeepEqual(def, value) {
			out[key] = value
		}
	}
	return out
}

// redact masks every value below the given top level keys. The keys of the
// masked sections stay visible.
func redact(m yamlMap, keys []string) {
	for _, key := range keys {
		section, ok := m[key].(yamlMap)
		if !ok {
			continue
		}
		for k := range section {
			section[k] = redactedValue
		}
	}
}

// configHandler serves the running config as YAML.
//
//	mode=diff      only values that differ from the defaults
//	mode=defaults  the defaults
//	section=name   a single top level section
//
// Values below the redacted top level keys are masked in every mode.
func configHandler(actualCfg, defaultCfg interface{}, redacted ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		defaults, err := toYAMLMap(defaultCfg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		actual, err := toYAMLMap(actualCfg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		var out yamlMap
		switch mode := query.Get("mode"); mode {
		case "":
			out = actual
		case "defaults":
			out = defaults
		case "diff":
			out = diffConfig(defaults, actual)
		default:
			http.Error(w, fmt.Sprintf("unknown mode %q, expected diff or defaults", mode), http.StatusBadRequest)
			return
		}
		redact(out, redacted)

		section := query.Get("section")
		if section == "" {
			writeYAMLResponse(w, out)
			return
		}
		value, ok := out[section]
		if !ok {
			http.Error(w, fmt.Sprintf("no config section %q", section), http.StatusNotFound)
			return
		}
		writeYAMLResponse(w, yamlMap{section: value})
	}
}

func writeYAMLResponse(w http.ResponseWriter, v interface{}) {
	data, err := yaml.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(data)
}
