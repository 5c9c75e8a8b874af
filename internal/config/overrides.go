package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Override sets the value at a dotted key path.
type Override struct {
	Path  []string
	Value any
}

func (o Override) Key() string {
	return strings.Join(o.Path, ".")
}

// ParseOverrides accepts "a.b=v", "--a.b=v" and "--a.b v" tokens.
// Values are read as YAML, so 1 is an int, true a bool and [x, y] a list.
func ParseOverrides(args []string) ([]Override, error) {
	out := make([]Override, 0, len(args))
	for i := 0; i < len(args); i++ {
		tok := args[i]
		if tok == "--" {
			continue
		}
		var key, raw string
		switch {
		case strings.HasPrefix(tok, "--"):
			tok = strings.TrimPrefix(tok, "--")
			if k, v, ok := strings.Cut(tok, "="); ok {
				key, raw = k, v
				break
			}
			if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
				return nil, fmt.Errorf("override --%s: missing value", tok)
			}
			key, raw = tok, args[i+1]
			i++
		default:
			k, v, ok := strings.Cut(tok, "=")
			if !ok {
				return nil, fmt.Errorf("override %q: expected key=value", tok)
			}
			key, raw = k, v
		}

		path, err := splitKey(key)
		if err != nil {
			return nil, err
		}
		out = append(out, Override{Path: path, Value: parseValue(raw)})
	}
	return out, nil
}

func splitKey(key string) ([]string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("override: empty key")
	}
	path := strings.Split(key, ".")
	for _, seg := range path {
		if seg == "" {
			return nil, fmt.Errorf("override %q: empty path segment", key)
		}
	}
	return path, nil
}

func parseValue(raw string) any {
	if raw == "" {
		return ""
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// Apply writes the override into tree, creating intermediate mappings.
func (o Override) Apply(tree map[string]any) error {
	node := tree
	for i, seg := range o.Path[:len(o.Path)-1] {
		next, ok := node[seg]
		if !ok || next == nil {
			child := map[string]any{}
			node[seg] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("override %s: %s is not a mapping", o.Key(), strings.Join(o.Path[:i+1], "."))
		}
		node = child
	}
	node[o.Path[len(o.Path)-1]] = o.Value
	return nil
}
