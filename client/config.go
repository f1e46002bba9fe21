// Package client loads zinc client configuration: named catalog bookmarks
// and a vars table used to parameterize them, read from TOML.
package client

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// VarsPrefix is the sigil a config string value uses to reference an entry
// in the [vars] table, e.g. "vars.home" resolves to vars.home.
const VarsPrefix = "vars."

// Config is a parsed zinc client configuration file.
type Config struct {
	Bookmarks map[string]Bookmark `toml:"bookmarks"`
	Vars      map[string]string   `toml:"vars"`
}

// Bookmark names a catalog and, optionally, the service that hosts it.
type Bookmark struct {
	Catalog string `toml:"catalog"`
	Service string `toml:"service"`
}

// Load parses TOML config bytes and resolves every "vars.NAME" reference
// against the [vars] table.
func Load(b []byte) (*Config, error) {
	var raw struct {
		Bookmarks map[string]map[string]string `toml:"bookmarks"`
		Vars      map[string]string            `toml:"vars"`
	}

	if _, err := toml.Decode(string(b), &raw); err != nil {
		return nil, errors.Wrap(err, "could not parse config")
	}

	cfg := &Config{
		Bookmarks: make(map[string]Bookmark, len(raw.Bookmarks)),
		Vars:      raw.Vars,
	}

	for name, fields := range raw.Bookmarks {
		resolved, err := resolveFields(fields, raw.Vars)
		if err != nil {
			return nil, errors.Wrapf(err, "could not resolve bookmark %s", name)
		}
		cfg.Bookmarks[name] = Bookmark{Catalog: resolved["catalog"], Service: resolved["service"]}
	}

	return cfg, nil
}

// resolveFields replaces any "vars.NAME" value with vars[NAME], recursively
// in spirit with the original client's dict-walking substitution, but
// scoped here to the flat bookmark tables zinc configs actually nest.
func resolveFields(fields map[string]string, vars map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if !strings.HasPrefix(v, VarsPrefix) {
			out[k] = v
			continue
		}

		varName := strings.TrimPrefix(v, VarsPrefix)
		resolved, ok := vars[varName]
		if !ok {
			return nil, errors.Errorf("undefined var %q referenced as %q", varName, v)
		}
		out[k] = resolved
	}
	return out, nil
}

// Bookmark looks up a named bookmark.
func (c *Config) Bookmark(name string) (Bookmark, bool) {
	b, ok := c.Bookmarks[name]
	return b, ok
}
