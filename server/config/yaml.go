package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// YAMLExtension is the extension of YAML configuration files.
const YAMLExtension = ".yml"

// YAML is a YAML configuration file. Its values are held in memory and read
// through dotted paths such as "town.max-members". Values present in the
// bundled template act as defaults for keys missing from the file on disk.
type YAML struct {
	dir      string
	name     string
	template fs.FS

	mu       sync.RWMutex
	values   map[string]any
	defaults map[string]any
}

// NewYAML returns a YAML file named name+".yml" inside dir. template holds the
// bundled default file under the same name and may be nil.
func NewYAML(dir, name string, template fs.FS) *YAML {
	return &YAML{
		dir:      filepath.Clean(dir),
		name:     name,
		template: template,
		values:   make(map[string]any),
		defaults: make(map[string]any),
	}
}

// Name ...
func (y *YAML) Name() string { return y.name }

// Extension ...
func (y *YAML) Extension() string { return YAMLExtension }

// DataDirectory ...
func (y *YAML) DataDirectory() string { return y.dir }

// Path ...
func (y *YAML) Path() string { return filepath.Join(y.dir, y.name+YAMLExtension) }

// Create makes sure the file exists on disk and loads it. A missing file is
// written from the bundled template.
func (y *YAML) Create() error {
	if err := os.MkdirAll(y.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrParentDirectory, err)
	}
	defaults, err := y.readTemplate()
	if err != nil && !errors.Is(err, ErrTemplateMissing) {
		return err
	}
	if defaults != nil {
		y.mu.Lock()
		y.defaults = defaults
		y.mu.Unlock()
	}

	info, statErr := os.Stat(y.Path())
	switch {
	case statErr == nil && info.IsDir():
		return fmt.Errorf("create %s: path is a directory", y.Path())
	case errors.Is(statErr, fs.ErrNotExist):
		if defaults == nil {
			return fmt.Errorf("create %s: %w", y.Path(), err)
		}
		if err := y.writeNew(defaults); err != nil {
			return err
		}
	case statErr != nil:
		return fmt.Errorf("stat %s: %w", y.Path(), statErr)
	}
	return y.Reload()
}

// Reload reads the file from disk. If the file cannot be read or parsed, the
// values loaded before are kept and an error is returned.
func (y *YAML) Reload() error {
	contents, err := os.ReadFile(y.Path())
	if err != nil {
		return fmt.Errorf("read %s: %w", y.Path(), err)
	}
	values, err := decode(contents)
	if err != nil {
		return fmt.Errorf("decode %s: %w", y.Path(), err)
	}
	y.mu.Lock()
	defer y.mu.Unlock()
	mergeDefaults(values, y.defaults)
	y.values = values
	return nil
}

// Save writes the values currently held in memory to disk, including defaults
// that were merged in.
func (y *YAML) Save() error {
	y.mu.RLock()
	encoded, err := yaml.Marshal(y.values)
	y.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode %s: %w", y.Path(), err)
	}
	if err := os.MkdirAll(y.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrParentDirectory, err)
	}
	if err := os.WriteFile(y.Path(), encoded, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", y.Path(), err)
	}
	return nil
}

// Get returns the value found at path.
func (y *YAML) Get(path string) (any, bool) {
	y.mu.RLock()
	defer y.mu.RUnlock()
	if v, ok := lookup(y.values, path); ok {
		return v, true
	}
	return lookup(y.defaults, path)
}

// Contains reports if a value exists at path.
func (y *YAML) Contains(path string) bool {
	_, ok := y.Get(path)
	return ok
}

// String returns the string at path, or def if there is none.
func (y *YAML) String(path, def string) string {
	if v, ok := y.Get(path); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Int returns the integer at path, or def if there is none.
func (y *YAML) Int(path string, def int) int {
	v, ok := y.Get(path)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}

// Float returns the number at path, or def if there is none.
func (y *YAML) Float(path string, def float64) float64 {
	v, ok := y.Get(path)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return def
}

// Bool returns the boolean at path, or def if there is none.
func (y *YAML) Bool(path string, def bool) bool {
	if v, ok := y.Get(path); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Strings returns the list of strings at path. Items that are not strings are
// formatted.
func (y *YAML) Strings(path string) []string {
	v, ok := y.Get(path)
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return slices.Clone(list)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// Set stores value at path, creating intermediate sections as needed. Save
// must be called to write the change to disk.
func (y *YAML) Set(path string, value any) {
	keys := strings.Split(path, ".")
	y.mu.Lock()
	defer y.mu.Unlock()

	section := y.values
	for _, key := range keys[:len(keys)-1] {
		next, ok := section[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			section[key] = next
		}
		section = next
	}
	section[keys[len(keys)-1]] = value
}

// Keys returns the sorted keys of the section at path, or the top level keys
// of the file if path is empty.
func (y *YAML) Keys(path string) []string {
	if path == "" {
		y.mu.RLock()
		defer y.mu.RUnlock()
		return slices.Sorted(maps.Keys(y.values))
	}
	v, ok := y.Get(path)
	if !ok {
		return nil
	}
	section, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(section))
}

func (y *YAML) readTemplate() (map[string]any, error) {
	if y.template == nil {
		return nil, ErrTemplateMissing
	}
	contents, err := fs.ReadFile(y.template, y.name+YAMLExtension)
	if err != nil {
		return nil, fmt.Errorf("%w: %s%s", ErrTemplateMissing, y.name, YAMLExtension)
	}
	values, err := decode(contents)
	if err != nil {
		return nil, fmt.Errorf("decode template %s%s: %w", y.name, YAMLExtension, err)
	}
	return values, nil
}

func (y *YAML) writeNew(values map[string]any) error {
	encoded, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode %s: %w", y.Path(), err)
	}
	f, err := os.OpenFile(y.Path(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", y.Path(), err)
	}
	defer f.Close()
	if _, err := f.Write(encoded); err != nil {
		return fmt.Errorf("write %s: %w", y.Path(), err)
	}
	return nil
}

func decode(contents []byte) (map[string]any, error) {
	values := make(map[string]any)
	if err := yaml.Unmarshal(contents, &values); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if values == nil {
		values = make(map[string]any)
	}
	return values, nil
}

func lookup(values map[string]any, path string) (any, bool) {
	var current any = values
	for _, key := range strings.Split(path, ".") {
		section, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = section[key]; !ok {
			return nil, false
		}
	}
	return current, true
}

// mergeDefaults copies every value of defaults that is missing in dst into
// dst, descending into sections present in both.
func mergeDefaults(dst, defaults map[string]any) {
	for key, def := range defaults {
		existing, ok := dst[key]
		if !ok {
			dst[key] = clone(def)
			continue
		}
		if dstSection, ok := existing.(map[string]any); ok {
			if defSection, ok := def.(map[string]any); ok {
				mergeDefaults(dstSection, defSection)
			}
		}
	}
}

func clone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[k] = clone(item)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, item := range val {
			s[i] = clone(item)
		}
		return s
	}
	return v
}

var _ File = (*YAML)(nil)
