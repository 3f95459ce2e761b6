package app

import (
	"context"
	"fmt"

	"github.com/dshills/luashell/internal/plugin"
)

// PackagePreference is a declared preference together with its owning
// package and current value.
type PackagePreference struct {
	Package string
	plugin.Preference
	Value any
	IsSet bool
}

// caller is implemented by modules that can call an exported function
// directly, such as Lua modules.
type caller interface {
	Call(ctx context.Context, symbol string, args ...any) ([]any, error)
}

// Preferences returns the preferences of every registered package, flat
// ones first within each package, with their current settings values.
func (app *Application) Preferences() []PackagePreference {
	var out []PackagePreference
	for _, d := range app.manager.Registry().Specs() {
		for _, p := range d.AllPreferences() {
			v, ok := app.settings.Get(p.Key)
			out = append(out, PackagePreference{
				Package:    d.Name,
				Preference: p,
				Value:      v,
				IsSet:      ok,
			})
		}
	}
	return out
}

// PreferenceOptions returns the choices of the preference key. Static
// options win; otherwise the owning package's options function is called.
func (app *Application) PreferenceOptions(ctx context.Context, key string) ([]string, error) {
	for _, d := range app.manager.Registry().Specs() {
		for _, p := range d.AllPreferences() {
			if p.Key != key {
				continue
			}
			if len(p.Options) > 0 || p.OptionsFunc == "" {
				return p.Options, nil
			}

			c, ok := d.Module().(caller)
			if !ok {
				return nil, fmt.Errorf("%s: module cannot call %q", d.Name, p.OptionsFunc)
			}
			results, err := c.Call(ctx, p.OptionsFunc)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", d.Name, p.OptionsFunc, err)
			}
			return optionStrings(results), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownPreference, key)
}

// optionStrings flattens the first result of an options function.
func optionStrings(results []any) []string {
	if len(results) == 0 {
		return nil
	}
	switch v := results[0].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case []string:
		return v
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(v)}
	}
}
