package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LUASHELL_"

// constPrefix names variables copied into Config.Constants, e.g.
// LUASHELL_CONST_EDITOR=vim sets constants["editor"] = "vim".
const constPrefix = EnvPrefix + "CONST_"

// LookupFunc reports the value of an environment variable.
type LookupFunc func(key string) (string, bool)

type envSetter func(cfg *Config, value string) error

// envMapping maps each supported variable to the field it sets.
var envMapping = map[string]envSetter{
	"LUASHELL_PACKAGES_DIRS": func(cfg *Config, v string) error {
		cfg.Packages.Dirs = filepath.SplitList(v)
		return nil
	},
	"LUASHELL_ALLOW_OVERRIDE": func(cfg *Config, v string) error {
		return setBool(&cfg.Packages.AllowOverride, v)
	},
	"LUASHELL_REGISTER_ON_COMPLETION": func(cfg *Config, v string) error {
		return setBool(&cfg.Packages.RegisterOnCompletion, v)
	},
	"LUASHELL_WAIT_TIMEOUT": func(cfg *Config, v string) error {
		return setDuration(&cfg.Packages.WaitTimeout, v)
	},
	"LUASHELL_SETTINGS_PATH": func(cfg *Config, v string) error {
		cfg.Settings.Path = v
		return nil
	},
	"LUASHELL_SETTINGS_WATCH": func(cfg *Config, v string) error {
		return setBool(&cfg.Settings.Watch, v)
	},
	"LUASHELL_LOG_LEVEL": func(cfg *Config, v string) error {
		cfg.Logging.Level = strings.ToLower(v)
		return nil
	},
	"LUASHELL_LOG_FORMAT": func(cfg *Config, v string) error {
		cfg.Logging.Format = strings.ToLower(v)
		return nil
	},
	"LUASHELL_LUA_CALL_TIMEOUT": func(cfg *Config, v string) error {
		return setDuration(&cfg.Lua.CallTimeout, v)
	},
	"LUASHELL_METRICS": func(cfg *Config, v string) error {
		return setBool(&cfg.Metrics.Enabled, v)
	},
}

var errNotBool = errors.New("not a boolean")

// ApplyEnv applies LUASHELL_* overrides read through lookup. Empty values
// are treated as set.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	var errs []error
	for name, set := range envMapping {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		if err := set(cfg, v); err != nil {
			errs = append(errs, &EnvError{Var: name, Value: v, Err: err})
		}
	}
	return errors.Join(errs...)
}

// ApplyConstants copies LUASHELL_CONST_* variables from environ into
// cfg.Constants, lower-casing the suffix.
func ApplyConstants(cfg *Config, environ []string) {
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, constPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, constPrefix))
		if key == "" {
			continue
		}
		if cfg.Constants == nil {
			cfg.Constants = make(map[string]any)
		}
		cfg.Constants[key] = value
	}
}

// LoadEnv applies both the mapped overrides and constants from the process
// environment.
func LoadEnv(cfg *Config) error {
	ApplyConstants(cfg, os.Environ())
	return ApplyEnv(cfg, os.LookupEnv)
}

func setBool(dst *bool, s string) error {
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		*dst = true
	case "false", "no", "off", "0", "":
		*dst = false
	default:
		return errNotBool
	}
	return nil
}

func setDuration(dst *Duration, s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	dst.Duration = d
	return nil
}
