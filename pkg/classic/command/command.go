// Package command holds the command-subsystem surface the session
// core interacts with: per-command metadata and a case-insensitive
// registry. Argument grammars and the individual command handlers are
// registered by higher layers.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blockhaven/classicd/pkg/classic/rank"
	"github.com/blockhaven/classicd/pkg/util/suggest"
)

// ErrUnknown is returned by Dispatch for an unregistered name.
var ErrUnknown = errors.New("unknown command")

// Source is the actor invoking a command, a live session or the
// console.
type Source interface {
	Name() string
	Rank() *rank.Rank
	// SendMessage writes a colored line back to the invoker.
	SendMessage(text string)
}

// Handler executes a command. Commands self-report results through
// the source; an error return is relayed to the invoker by the
// dispatcher.
type Handler func(ctx context.Context, src Source, args string) error

// Command is one registered command with its dispatch metadata.
type Command struct {
	Name    string
	Aliases []string
	// Permissions the invoker's rank must all hold. Empty means
	// usable by anyone.
	Permissions []rank.Permission
	// UsableWhileFrozen lets frozen players still run the command.
	UsableWhileFrozen bool
	// NotRepeatable excludes the command from "/" repetition.
	NotRepeatable bool
	// DisableLogging suppresses the invocation log line, for
	// commands carrying sensitive arguments.
	DisableLogging bool
	Usage   string
	Help    string
	Handler Handler
}

func (c *Command) validate() error {
	if c == nil {
		return errors.New("command must not be nil")
	}
	if c.Name == "" {
		return errors.New("command name must not be empty")
	}
	if c.Handler == nil {
		return fmt.Errorf("command %q has no handler", c.Name)
	}
	return nil
}

// Registry is the set of registered commands, keyed case-insensitively
// by name and alias.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Command
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]*Command{}}
}

// Register adds a command under its name and aliases. Registering a
// taken name is an error.
func (r *Registry) Register(c *Command) error {
	if err := c.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := append([]string{c.Name}, c.Aliases...)
	for _, k := range keys {
		if _, ok := r.byName[strings.ToLower(k)]; ok {
			return fmt.Errorf("command name %q already registered", k)
		}
	}
	for _, k := range keys {
		r.byName[strings.ToLower(k)] = c
	}
	return nil
}

// Get returns the command registered under name, nil if absent.
func (r *Registry) Get(name string) *Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[strings.ToLower(name)]
}

// Names returns all primary command names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]struct{}{}
	var names []string
	for _, c := range r.byName {
		if _, ok := seen[c.Name]; ok {
			continue
		}
		seen[c.Name] = struct{}{}
		names = append(names, c.Name)
	}
	return names
}

// Suggest returns the closest registered name to the given input,
// empty if nothing is similar enough.
func (r *Registry) Suggest(name string) string {
	return suggest.Closest(strings.ToLower(name), r.Names())
}

// Dispatch resolves and runs a command. Permission checks against the
// source's rank happen here; frozen-state gating is the caller's
// concern since it needs session state.
func (r *Registry) Dispatch(ctx context.Context, src Source, name, args string) error {
	c := r.Get(name)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	for _, p := range c.Permissions {
		if !src.Rank().Can(p) {
			return fmt.Errorf("you do not have permission to use /%s", c.Name)
		}
	}
	return c.Handler(ctx, src, args)
}
