// Package config loads the luashell host configuration.
//
// Configuration is layered, later layers winning:
//
//  1. Built-in defaults (Default)
//  2. The TOML file (default ~/.config/luashell/config.toml)
//  3. LUASHELL_* environment variables
//
// Example file:
//
//	[packages]
//	dirs = ["~/.config/luashell/packages", "./packages"]
//	allow_override = false
//	wait_timeout = "30s"
//
//	[settings]
//	path = "~/.config/luashell/settings.json"
//	watch = true
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[constants]
//	shell = "luashell"
package config
