package command

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps command names to commands. It is populated at startup and
// only read afterwards.
type Registry struct {
	commands map[string]Command
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a command under name.
func (r *Registry) Register(name string, cmd Command) error {
	if cmd == nil {
		return &CommandError{Code: ErrCodeRegistration, Command: name, Message: "cannot register a nil command"}
	}
	if name == "" {
		return &CommandError{Code: ErrCodeRegistration, Message: "command name cannot be empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; exists {
		return &CommandError{
			Code:    ErrCodeRegistration,
			Command: name,
			Message: fmt.Sprintf("command %q already registered", name),
		}
	}
	r.commands[name] = cmd
	return nil
}

// MustRegister registers the command and panics on error.
func (r *Registry) MustRegister(name string, cmd Command) {
	if err := r.Register(name, cmd); err != nil {
		panic(err)
	}
}

// Lookup resolves name. Unknown names yield a not-found *CommandError.
func (r *Registry) Lookup(name string) (Command, error) {
	r.mu.RLock()
	cmd, ok := r.commands[name]
	r.mu.RUnlock()
	if !ok {
		return nil, NewNotFoundError(name)
	}
	return cmd, nil
}

// Has checks whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.commands[name]
	return exists
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered commands.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}
