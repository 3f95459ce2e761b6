package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrNotObject is returned when a settings file does not hold a JSON object.
var ErrNotObject = errors.New("settings: file is not a JSON object")

// FileBackend stores settings as a flat JSON object in one file. Keys are
// stored verbatim, dots included.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileBackend creates a backend for path. The file is created on the
// first save.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the backing file path.
func (f *FileBackend) Path() string {
	return f.path
}

// Load implements Backend.
func (f *FileBackend) Load() (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read()
	if err != nil {
		return nil, err
	}

	values := make(map[string]any)
	gjson.ParseBytes(data).ForEach(func(k, v gjson.Result) bool {
		values[k.String()] = v.Value()
		return true
	})
	return values, nil
}

// Save implements Backend.
func (f *FileBackend) Save(key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read()
	if err != nil {
		return err
	}

	path := escapeKey(key)
	if value == nil {
		data, err = sjson.DeleteBytes(data, path)
	} else {
		data, err = sjson.SetBytesOptions(data, path, value, &sjson.Options{Optimistic: true})
	}
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o644)
}

// read returns the file contents, "{}" when the file is missing or empty.
// Must be called with mu held.
func (f *FileBackend) read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []byte("{}"), nil
		}
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []byte("{}"), nil
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return nil, fmt.Errorf("%w: %s", ErrNotObject, f.path)
	}
	return data, nil
}

// pathSpecial are the characters with meaning in gjson/sjson paths.
const pathSpecial = `\.*?|#@:!=<>%`

// escapeKey turns a flat key into an sjson path addressing that exact key.
func escapeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for _, r := range key {
		if strings.ContainsRune(pathSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
