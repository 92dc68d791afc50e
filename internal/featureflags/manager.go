// Package featureflags evaluates static feature flags with per-user rollouts.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// GlobalFeed switches a viewer's feed from the following-filtered policy to
// every active post.
const GlobalFeed = "global_feed"

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "global_feed=25%,image_webp=off"
type Manager struct {
	flags map[string]string
}

// fileFormat is the YAML layout of FEATURE_FLAGS_FILE:
//
//	flags:
//	  global_feed: 25%
type fileFormat struct {
	Flags map[string]string `yaml:"flags"`
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	m := &Manager{flags: make(map[string]string)}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		m.set(parts[0], parts[1])
	}

	return m
}

// Load builds a manager from an optional YAML file and the inline list. Inline
// entries win over file entries with the same name.
func Load(path, raw string) (*Manager, error) {
	m := NewManager("")
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read feature flags file: %w", err)
		}
		var f fileFormat
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse feature flags file %s: %w", path, err)
		}
		for k, v := range f.Flags {
			m.set(k, v)
		}
	}
	for k, v := range NewManager(raw).flags {
		m.flags[k] = v
	}
	return m, nil
}

func (m *Manager) set(key, value string) {
	key, value = normalize(key), normalize(value)
	if key == "" || value == "" {
		return
	}
	m.flags[key] = value
}

// Enabled returns whether a flag is enabled for a given user.
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic user rollout, e.g. 25%)
//
// An empty userID (anonymous) only sees flags at 100%.
func (m *Manager) Enabled(name string, userID string) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	if strings.HasSuffix(value, "%") {
		pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
		if err != nil || pct <= 0 {
			return false
		}
		if pct >= 100 {
			return true
		}
		if userID == "" {
			return false
		}
		return rolloutBucket(name, userID) < pct
	}

	return false
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot returns evaluated flag status for one user.
func (m *Manager) Snapshot(userID string) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + userID))
	return int(h.Sum32() % 100)
}
