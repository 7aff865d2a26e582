package prompts

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ActionRegistry holds the actions available to the user.
type ActionRegistry struct {
	mu      sync.RWMutex
	actions map[string]*Action // normalized name -> action
}

var defaultRegistry *ActionRegistry
var defaultRegistryOnce sync.Once

// DefaultRegistry returns the process-wide registry seeded with the builtin actions.
func DefaultRegistry() *ActionRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewActionRegistry()
		for _, a := range BuiltinActions() {
			defaultRegistry.Register(a)
		}
	})
	return defaultRegistry
}

// NewActionRegistry creates an empty registry.
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{
		actions: make(map[string]*Action),
	}
}

// Register adds an action, replacing any action with the same name.
func (r *ActionRegistry) Register(a Action) {
	if key(a.Name) == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	a.Name = strings.TrimSpace(a.Name)
	r.actions[key(a.Name)] = &a
}

// Get looks an action up by name, case-insensitively.
func (r *ActionRegistry) Get(name string) (Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.actions[key(name)]
	if !ok {
		return Action{}, fmt.Errorf("action not found: %s", name)
	}
	return *a, nil
}

// List returns every action sorted by name.
func (r *ActionRegistry) List() []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Action, 0, len(r.actions))
	for _, a := range r.actions {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		return key(out[i].Name) < key(out[j].Name)
	})
	return out
}

// actionFileSchema describes the YAML actions file.
const actionFileSchema = `{
  "type": "object",
  "required": ["actions"],
  "additionalProperties": false,
  "properties": {
    "actions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "additionalProperties": false,
        "properties": {
          "name":        {"type": "string", "minLength": 1},
          "prompt":      {"type": "string"},
          "system":      {"type": "string"},
          "replace":     {"type": "boolean"},
          "model":       {"type": "string"},
          "temperature": {"type": "number", "minimum": 0, "maximum": 2}
        }
      }
    }
  }
}`

// ActionValidationError lists the schema violations of an actions file.
type ActionValidationError struct {
	Path   string
	Errors []string
}

func (e *ActionValidationError) Error() string {
	return fmt.Sprintf("actions file %s is invalid: %s", e.Path, strings.Join(e.Errors, "; "))
}

type actionFile struct {
	Actions []Action `yaml:"actions"`
}

// LoadFile reads a YAML actions file, validates it and registers its actions.
// It returns the number of actions loaded.
func (r *ActionRegistry) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read actions file: %w", err)
	}
	return r.Load(path, data)
}

// Load validates and registers actions from YAML data. name is used in errors.
func (r *ActionRegistry) Load(name string, data []byte) (int, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("failed to parse actions file: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(actionFileSchema),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return 0, fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return 0, &ActionValidationError{Path: name, Errors: msgs}
	}

	var file actionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to decode actions: %w", err)
	}
	for _, a := range file.Actions {
		r.Register(a)
	}
	return len(file.Actions), nil
}
