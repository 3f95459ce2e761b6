package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// ManifestFile is the manifest file name inside a package directory.
const ManifestFile = "package.json"

// DefaultInitSymbol is the entry point looked up when a manifest has no init field.
const DefaultInitSymbol = "init"

// Manifest describes a package.
type Manifest struct {
	// Identity
	Name        string // Unique package name
	Version     string // Optional version string
	Description string // Short description

	// Entry point
	Main string // Entry module path, relative to the package directory
	Init string // Entry symbol override (default: "init")

	// Requirements
	Dependencies []string // Normalized package names, first-seen order

	// Configuration schema
	Preferences      []Preference
	PreferenceGroups []PreferenceGroup

	// Internal: path to the package directory
	dir string
}

// Preference types.
const (
	PrefToggle = ""        // plain value, shown as an on/off option
	PrefBool   = "boolean" // explicit boolean
	PrefInput  = "input"   // free text, optionally a file path
	PrefSize   = "size"    // {width, height}
	PrefChoice = "choice"  // one of Options
)

var validPrefTypes = map[string]bool{
	PrefToggle: true,
	PrefBool:   true,
	PrefInput:  true,
	PrefSize:   true,
	PrefChoice: true,
}

// Preference is one typed setting declared by a package.
type Preference struct {
	Key         string // Settings key
	Default     any    // Default value, nil if none
	HasDefault  bool   // Default was declared (it may be JSON null)
	Label       string // Display label
	Invert      bool   // Option is shown inverted (e.g. "disable.x" as "Show x")
	Type        string // One of the Pref* constants
	Placeholder string // Input placeholder
	File        bool   // Input names a file
	Options     []string
	OptionsFunc string // Module function returning the options of a choice
	Group       string // Owning group, empty for flat preferences
}

// PreferenceGroup is a named set of preferences.
type PreferenceGroup struct {
	Name        string
	Preferences []Preference
}

// ReadManifest reads and parses the manifest of the package in dir.
func ReadManifest(fsys FileSystem, dir string) (*Manifest, error) {
	data, err := fsys.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &PackageError{Dir: dir, Op: "read manifest", Err: ErrManifestMissing}
		}
		return nil, &PackageError{Dir: dir, Op: "read manifest", Err: fmt.Errorf("%w: %w", ErrManifestMissing, err)}
	}

	m, err := ParseManifest(dir, data)
	if err != nil {
		return nil, &PackageError{Dir: dir, Op: "read manifest", Err: err}
	}
	return m, nil
}

// ParseManifest parses manifest JSON for the package in dir.
// Object key order in the document is kept for dependencies and preferences.
func ParseManifest(dir string, data []byte) (*Manifest, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrManifestMalformed)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrManifestMalformed)
	}

	m := &Manifest{dir: dir}

	var err error
	if m.Name, err = stringField(root, "name"); err != nil {
		return nil, err
	}
	if m.Main, err = stringField(root, "main"); err != nil {
		return nil, err
	}
	if m.Init, err = stringField(root, "init"); err != nil {
		return nil, err
	}
	if m.Version, err = stringField(root, "version"); err != nil {
		return nil, err
	}
	if m.Description, err = stringField(root, "description"); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, key := range []string{"dependencies", "packageDependencies"} {
		names, err := nameSet(root.Get(key), key)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				m.Dependencies = append(m.Dependencies, n)
			}
		}
	}

	if m.Preferences, err = parsePreferences(root.Get("preferences"), ""); err != nil {
		return nil, err
	}
	if m.PreferenceGroups, err = parseGroups(root.Get("preferenceGroups")); err != nil {
		return nil, err
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the required fields.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrManifestIncomplete)
	}
	if m.Main == "" {
		return fmt.Errorf("%w: main is required", ErrManifestIncomplete)
	}
	return nil
}

// Dir returns the package directory.
func (m *Manifest) Dir() string {
	return m.dir
}

// MainPath returns the entry module path.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.dir, m.Main)
}

// InitSymbol returns the entry symbol.
func (m *Manifest) InitSymbol() string {
	if m.Init != "" {
		return m.Init
	}
	return DefaultInitSymbol
}

// AllPreferences returns flat preferences followed by grouped ones.
func (m *Manifest) AllPreferences() []Preference {
	all := make([]Preference, 0, len(m.Preferences))
	all = append(all, m.Preferences...)
	for _, g := range m.PreferenceGroups {
		all = append(all, g.Preferences...)
	}
	return all
}

// String returns a short description of the manifest.
func (m *Manifest) String() string {
	if m.Version != "" {
		return fmt.Sprintf("%s@%s", m.Name, m.Version)
	}
	return m.Name
}

// stringField returns an optional string field. Absent and null read as "".
func stringField(root gjson.Result, key string) (string, error) {
	v := root.Get(key)
	switch v.Type {
	case gjson.Null:
		return "", nil
	case gjson.String:
		return v.Str, nil
	default:
		return "", fmt.Errorf("%w: %s must be a string", ErrManifestMalformed, key)
	}
}

// nameSet normalizes an array of names or an object whose keys are names.
func nameSet(v gjson.Result, field string) ([]string, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return nil, nil
	}

	var names []string
	switch {
	case v.IsArray():
		var bad bool
		v.ForEach(func(_, item gjson.Result) bool {
			if item.Type != gjson.String || item.Str == "" {
				bad = true
				return false
			}
			names = append(names, item.Str)
			return true
		})
		if bad {
			return nil, fmt.Errorf("%w: %s entries must be non-empty strings", ErrManifestMalformed, field)
		}
	case v.IsObject():
		v.ForEach(func(key, _ gjson.Result) bool {
			names = append(names, key.Str)
			return true
		})
	default:
		return nil, fmt.Errorf("%w: %s must be an array or an object", ErrManifestMalformed, field)
	}
	return names, nil
}

func parsePreferences(v gjson.Result, group string) ([]Preference, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return nil, nil
	}
	if !v.IsObject() {
		return nil, fmt.Errorf("%w: preferences must be an object", ErrManifestMalformed)
	}

	var prefs []Preference
	var err error
	v.ForEach(func(key, entry gjson.Result) bool {
		var p Preference
		p, err = parsePreference(key.Str, entry, group)
		if err != nil {
			return false
		}
		prefs = append(prefs, p)
		return true
	})
	if err != nil {
		return nil, err
	}
	return prefs, nil
}

func parsePreference(key string, entry gjson.Result, group string) (Preference, error) {
	p := Preference{Key: key, Group: group}
	if key == "" {
		return p, fmt.Errorf("%w: preference key is empty", ErrManifestMalformed)
	}
	if !entry.IsObject() {
		return p, fmt.Errorf("%w: preference %q must be an object", ErrManifestMalformed, key)
	}

	if d := entry.Get("default"); d.Exists() {
		p.Default = d.Value()
		p.HasDefault = true
	}
	p.Label = entry.Get("label").String()
	p.Invert = entry.Get("invert").Bool()
	p.Placeholder = entry.Get("placeholder").String()
	p.File = entry.Get("file").Bool()

	p.Type = entry.Get("type").String()
	if !validPrefTypes[p.Type] {
		return p, fmt.Errorf("%w: preference %q has unknown type %q", ErrManifestMalformed, key, p.Type)
	}

	opts := entry.Get("options")
	switch {
	case !opts.Exists():
	case opts.Type == gjson.String:
		p.OptionsFunc = opts.Str
	case opts.IsArray():
		for _, o := range opts.Array() {
			p.Options = append(p.Options, o.String())
		}
	default:
		return p, fmt.Errorf("%w: preference %q options must be an array or a function name", ErrManifestMalformed, key)
	}
	return p, nil
}

func parseGroups(v gjson.Result) ([]PreferenceGroup, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return nil, nil
	}
	if !v.IsObject() {
		return nil, fmt.Errorf("%w: preferenceGroups must be an object", ErrManifestMalformed)
	}

	var groups []PreferenceGroup
	var err error
	v.ForEach(func(key, entry gjson.Result) bool {
		var prefs []Preference
		prefs, err = parsePreferences(entry, key.Str)
		if err != nil {
			return false
		}
		groups = append(groups, PreferenceGroup{Name: key.Str, Preferences: prefs})
		return true
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}
