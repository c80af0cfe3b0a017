package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// Toggle is an option that is written either as a boolean or as an object.
// An object enables the option unless it carries "enabled: false".
//
//	useVersioning: true
//	useVersioning: { digest: sha256 }
type Toggle[T any] struct {
	Enabled bool `mapstructure:"enabled"`
	Options T    `mapstructure:"options"`
}

func (Toggle[T]) isToggle() {}

type toggler interface{ isToggle() }

var togglerType = reflect.TypeOf((*toggler)(nil)).Elem()

// ToggleFlags names the boolean flags that switch a Toggle on or off. A
// changed flag sets Enabled and keeps any options read from files.
var ToggleFlags = map[string]string{
	"useBabel":      "babel",
	"usePostCSS":    "postcss",
	"useVersioning": "versioning",
	"useLog":        "log",
}

// toggleHook rewrites the boolean and object spellings into the
// {enabled, options} shape Toggle decodes from.
func toggleHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if !to.Implements(togglerType) {
		return data, nil
	}
	switch d := data.(type) {
	case nil:
		return map[string]any{"enabled": false}, nil
	case bool:
		return map[string]any{"enabled": d}, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(d))
		if err != nil {
			return nil, fmt.Errorf("expected true, false or an object, got %q", d)
		}
		return map[string]any{"enabled": b}, nil
	case map[string]any:
		enabled := true
		opts := make(map[string]any, len(d))
		for k, v := range d {
			if strings.EqualFold(k, "enabled") {
				b, ok := v.(bool)
				if !ok {
					return nil, fmt.Errorf("enabled must be a boolean, got %T", v)
				}
				enabled = b
				continue
			}
			opts[k] = v
		}
		return map[string]any{"enabled": enabled, "options": opts}, nil
	default:
		return data, nil
	}
}

func applyToggleFlags(cfg *Config, fs *pflag.FlagSet) error {
	targets := map[string]*bool{
		ToggleFlags["useBabel"]:      &cfg.UseBabel.Enabled,
		ToggleFlags["usePostCSS"]:    &cfg.UsePostCSS.Enabled,
		ToggleFlags["useVersioning"]: &cfg.UseVersioning.Enabled,
		ToggleFlags["useLog"]:        &cfg.UseLog.Enabled,
	}
	for name, dst := range targets {
		f := fs.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		b, err := fs.GetBool(name)
		if err != nil {
			return fmt.Errorf("flag --%s: %w", name, err)
		}
		*dst = b
	}
	return nil
}
