package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ApplyParameters overlays parameter entries (keys without the config.parameter.
// prefix) onto the configuration. Known keys decode into typed fields; every key
// stays readable through Parameter. On error c is left unchanged.
func (c *Config) ApplyParameters(params map[string]string) error {
	if len(params) == 0 {
		return nil
	}

	input := make(map[string]any, len(params))
	for k, v := range params {
		input[k] = v
	}

	next := c.Clone()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           next,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToFlagHook,
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}

	if next.Parameters == nil {
		next.Parameters = make(map[string]string, len(params))
	}
	for k, v := range params {
		next.Parameters[k] = v
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*c = *next
	return nil
}

// Parameter returns a parameter overlay value by name.
func (c *Config) Parameter(name string) (string, bool) {
	v, ok := c.Parameters[name]
	return v, ok
}

// stringToFlagHook accepts y/yes/n/no in addition to strconv.ParseBool forms.
func stringToFlagHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Bool {
		return data, nil
	}
	switch strings.ToLower(strings.TrimSpace(data.(string))) {
	case "y", "yes":
		return true, nil
	case "n", "no", "":
		return false, nil
	}
	return data, nil
}
