package plugin

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/leeforge/monitor/errors"
)

// Namespaces aggregates producer handler sets keyed by alias. Handlers are
// addressed as "alias.handler".
type Namespaces struct {
	entries map[string]Handlers
	mu      sync.RWMutex
}

// NewNamespaces creates an empty registry.
func NewNamespaces() *Namespaces {
	return &Namespaces{
		entries: make(map[string]Handlers),
	}
}

// Register stores handlers under alias. Returns error if alias already exists.
func (ns *Namespaces) Register(alias string, handlers Handlers) error {
	if alias == "" {
		return apperrors.NewConfiguration("namespace alias is empty")
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	if _, exists := ns.entries[alias]; exists {
		return apperrors.NewDuplicateNamespace(alias)
	}
	if handlers == nil {
		handlers = Handlers{}
	}
	ns.entries[alias] = handlers
	return nil
}

// Get returns the handlers registered under alias.
func (ns *Namespaces) Get(alias string) (Handlers, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	h, ok := ns.entries[alias]
	return h, ok
}

// Has returns true if alias is registered.
func (ns *Namespaces) Has(alias string) bool {
	_, ok := ns.Get(alias)
	return ok
}

// Len returns the number of aliases.
func (ns *Namespaces) Len() int {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return len(ns.entries)
}

// Aliases returns all registered aliases, sorted alphabetically.
func (ns *Namespaces) Aliases() []string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	aliases := make([]string, 0, len(ns.entries))
	for alias := range ns.entries {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// Lookup returns a single handler by alias and name.
func (ns *Namespaces) Lookup(alias, name string) (any, bool) {
	h, ok := ns.Get(alias)
	if !ok {
		return nil, false
	}
	fn, ok := h[name]
	return fn, ok
}

// splitKey splits "alias.handler" on the last dot so aliases may contain dots.
func splitKey(key string) (alias, name string, ok bool) {
	i := strings.LastIndex(key, ".")
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// Resolve retrieves a handler by "alias.handler" with compile-time type safety.
func Resolve[T any](ns *Namespaces, key string) (T, error) {
	var zero T
	alias, name, ok := splitKey(key)
	if !ok {
		return zero, apperrors.NewConfiguration(fmt.Sprintf("namespace key %q must be alias.handler", key))
	}

	fn, exists := ns.Lookup(alias, name)
	if !exists {
		return zero, apperrors.NewNotFound("namespace handler", key)
	}

	typed, ok := fn.(T)
	if !ok {
		return zero, apperrors.New(apperrors.ErrorTypeInternal,
			fmt.Sprintf("namespace handler %q is %T, want %s", key, fn, reflect.TypeFor[T]()))
	}
	return typed, nil
}

// MustResolve retrieves a handler, panicking if not found or wrong type.
func MustResolve[T any](ns *Namespaces, key string) T {
	fn, err := Resolve[T](ns, key)
	if err != nil {
		panic(err)
	}
	return fn
}
