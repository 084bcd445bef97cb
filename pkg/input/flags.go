// Package input provides flag.Value helpers for repeatable CLI options.
package input

import (
	"fmt"
	"strings"
)

// StringSliceFlag collects repeated or comma-separated flag values.
type StringSliceFlag []string

func (s *StringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *StringSliceFlag) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			*s = append(*s, v)
		}
	}
	return nil
}

// KV is one name=value pair.
type KV struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// KVFlag collects repeated name=value flag values.
type KVFlag []KV

func (k *KVFlag) String() string {
	parts := make([]string, len(*k))
	for i, kv := range *k {
		parts[i] = kv.Name + "=" + kv.Value
	}
	return strings.Join(parts, ",")
}

func (k *KVFlag) Set(value string) error {
	name, val, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("expected name=value, got %q", value)
	}
	*k = append(*k, KV{Name: strings.TrimSpace(name), Value: val})
	return nil
}
