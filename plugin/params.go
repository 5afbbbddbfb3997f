package plugin

import (
	"encoding/json"

	"github.com/geonexus/extractd/errors"
)

// ParamType is the input type of a plugin parameter
type ParamType string

const (
	ParamText      ParamType = "text"
	ParamPass      ParamType = "pass"
	ParamNumeric   ParamType = "numeric"
	ParamBoolean   ParamType = "boolean"
	ParamMultitext ParamType = "multitext"
	ParamEmail     ParamType = "email"
)

// ParamSpec declares one configurable parameter of a plugin. The JSON form
// of a ParamSpec slice is the stable contract surfaced to the configuration
// UI.
type ParamSpec struct {
	Code      string    `json:"code"`
	Label     string    `json:"label"`
	Type      ParamType `json:"type"`
	Required  bool      `json:"req"`
	MaxLength int       `json:"maxlength,omitempty"`
	Min       *int      `json:"min,omitempty"`
	Max       *int      `json:"max,omitempty"`
	Help      string    `json:"help,omitempty"`
}

// MarshalParams renders a parameter schema as its JSON array form.
func MarshalParams(params []ParamSpec) (string, error) {
	if params == nil {
		params = []ParamSpec{}
	}

	data, err := json.Marshal(params)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal plugin parameters")
	}

	return string(data), nil
}

// UnmarshalParamValues decodes a JSON object of parameter values into the
// string map handed to plugin instances.
func UnmarshalParamValues(raw string) (map[string]string, error) {
	values := make(map[string]string)
	if raw == "" {
		return values, nil
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, errors.Wrap(err, "failed to decode parameter values")
	}

	for key, value := range decoded {
		switch typed := value.(type) {
		case string:
			values[key] = typed
		default:
			data, err := json.Marshal(typed)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to encode parameter %s", key)
			}
			values[key] = string(data)
		}
	}

	return values, nil
}
