// Package config implements the Config Loader (spec.md §4.1): a defaulted
// accessor over the main TOML config plus typed decoding of per-service and
// per-milestone descriptor files.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// schemaKey identifies one section/key pair in the statically registered
// default schema. Modeled as a struct key rather than the original's
// flattened "section/key" string, per SPEC_FULL.md §4.1.
type schemaKey struct {
	Section string
	Key     string
}

// defaults is the authoritative schema: every recognized section/key and
// its default value. A key absent from this map is "not present" per
// spec.md §4.1, regardless of what the document contains.
var defaults = map[schemaKey]any{
	{"airup", "osname"}:         "Unknown OS",
	{"airup", "airup_home"}:     "/etc/airup.d",
	{"airup", "env_path"}:       "DONT_SETUP",
	{"airup", "prestart_paral"}: false,
}

// Main holds the defaulted values of the `[airup]` section of
// /etc/airup.conf.
type Main struct {
	Osname        string
	AirupHome     string
	EnvPath       string
	PrestartParal bool
}

// Document is a parsed TOML document plus the defaulted accessor described
// in spec.md §4.1.
type Document struct {
	raw map[string]any
}

// Load reads and parses path as TOML. A missing or unparsable file is
// returned as an error; the caller (normally boot) is responsible for the
// emergency-shell fallback described in spec.md §7.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var raw map[string]any

	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &Document{raw: raw}, nil
}

// Empty returns a Document with no backing data, so every Get falls
// through to the schema default. Used when the main config does not exist
// but the caller wants to proceed with defaults rather than the emergency
// shell (not currently exercised by boot, but useful for tests).
func Empty() *Document {
	return &Document{}
}

// Get looks up section.key; on absence, or on a type mismatch against the
// registered default, it returns the schema default and ok=true (the
// default always exists for the keys airupd queries; ok=false only for an
// unrecognized section/key with no schema entry at all).
func (d *Document) Get(section, key string) (any, bool) {
	def, known := defaults[schemaKey{section, key}]
	if !known {
		return nil, false
	}

	if d == nil || d.raw == nil {
		return def, true
	}

	sec, ok := d.raw[section].(map[string]any)
	if !ok {
		return def, true
	}

	val, ok := sec[key]
	if !ok {
		return def, true
	}

	if !sameType(val, def) {
		return def, true
	}

	return val, true
}

func sameType(a, b any) bool {
	switch b.(type) {
	case string:
		_, ok := a.(string)

		return ok
	case bool:
		_, ok := a.(bool)

		return ok
	default:
		return fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b)
	}
}

func (d *Document) getString(section, key string) string {
	v, _ := d.Get(section, key)

	s, _ := v.(string)

	return s
}

func (d *Document) getBool(section, key string) bool {
	v, _ := d.Get(section, key)

	b, _ := v.(bool)

	return b
}

// LoadMain builds the defaulted Main config view from a parsed Document.
func (d *Document) LoadMain() Main {
	return Main{
		Osname:        d.getString("airup", "osname"),
		AirupHome:     d.getString("airup", "airup_home"),
		EnvPath:       d.getString("airup", "env_path"),
		PrestartParal: d.getBool("airup", "prestart_paral"),
	}
}

// DontSetupSentinel is the env_path value meaning "leave PATH untouched".
const DontSetupSentinel = "DONT_SETUP"
