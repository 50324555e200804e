package supervisor

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// EnvMap accepts either a YAML mapping (key: value) or a list of
// "KEY=VALUE" strings, so a resolved config can write env either way.
type EnvMap map[string]string

func (e *EnvMap) UnmarshalYAML(value *yaml.Node) error {
	out := EnvMap{}
	switch value.Kind {
	case yaml.MappingNode:
		var m map[string]string
		if err := value.Decode(&m); err != nil {
			return err
		}
		for k, v := range m {
			out[k] = v
		}
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		for _, entry := range list {
			k, v, ok := splitKV(entry)
			if !ok {
				return fmt.Errorf("env entry %q is not KEY=VALUE", entry)
			}
			out[k] = v
		}
	default:
		return fmt.Errorf("env must be a mapping or a list of KEY=VALUE strings")
	}
	*e = out
	return nil
}

func (e EnvMap) MarshalYAML() (any, error) {
	return map[string]string(e), nil
}

func splitKV(s string) (key, value string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

// ProcessSpec is the resolved, validated description of a process to
// supervise. It is the only contract between a config loader and the
// supervisor; the supervisor never reads configuration files itself.
type ProcessSpec struct {
	Name        string   `yaml:"name" json:"name"`
	Command     string   `yaml:"command" json:"command"`
	Args        []string `yaml:"args" json:"args"`
	Cwd         string   `yaml:"cwd" json:"cwd"`
	Env         EnvMap   `yaml:"env" json:"env"`
	AutoRestart bool     `yaml:"auto_restart" json:"auto_restart"`
	MaxRestarts int      `yaml:"max_restarts" json:"max_restarts"`
}

// EnvSlice merges Env over the inherited process environment, with Env
// taking precedence on key collisions, in os.Environ() call order.
func (p ProcessSpec) EnvSlice(inherited []string) []string {
	out := make([]string, 0, len(inherited)+len(p.Env))
	seen := make(map[string]bool, len(p.Env))
	for _, kv := range inherited {
		k, _, ok := splitKV(kv)
		if ok && p.Env != nil {
			if v, overridden := p.Env[k]; overridden {
				out = append(out, k+"="+v)
				seen[k] = true
				continue
			}
		}
		out = append(out, kv)
	}
	for k, v := range p.Env {
		if !seen[k] {
			out = append(out, k+"="+v)
		}
	}
	return out
}
