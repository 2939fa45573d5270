// Package typereg holds per-extension type alias tables for one connection.
package typereg

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/mcsci/internal/protocol/value"
)

var (
	ErrUnknownAlias  = errors.New("typereg: unknown alias")
	ErrAliasConflict = errors.New("typereg: alias conflict")
)

type aliasKey struct {
	ext   uint32
	alias string
}

// Registry maps (extension id, alias name) to a type descriptor. Lookups are
// safe under concurrent extension reads; contents are never shared across
// connections. The v0 built-in aliases resolve in every extension scope.
type Registry struct {
	mu      sync.RWMutex
	aliases map[aliasKey]value.Descriptor
}

func New() *Registry {
	return &Registry{aliases: make(map[aliasKey]value.Descriptor)}
}

// Register stores an alias. Registering the same alias with an equal
// descriptor is a no-op; redefining it differently fails.
func (r *Registry) Register(ext uint32, alias string, desc value.Descriptor) error {
	if _, ok := builtins[alias]; ok {
		return fmt.Errorf("%w: %q shadows a built-in alias", ErrAliasConflict, alias)
	}
	key := aliasKey{ext: ext, alias: alias}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.aliases[key]; ok {
		if existing.String() != desc.String() {
			return fmt.Errorf("%w: %q redefined with a different type", ErrAliasConflict, alias)
		}
		return nil
	}
	r.aliases[key] = desc
	return nil
}

// Resolve looks an alias up within one extension scope, falling back to the
// built-in aliases.
func (r *Registry) Resolve(ext uint32, alias string) (value.Descriptor, error) {
	r.mu.RLock()
	d, ok := r.aliases[aliasKey{ext: ext, alias: alias}]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}
	if d, ok := builtins[alias]; ok {
		return d, nil
	}
	return value.Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownAlias, alias)
}

// Has reports whether an alias resolves in the given extension scope.
func (r *Registry) Has(ext uint32, alias string) bool {
	_, err := r.Resolve(ext, alias)
	return err == nil
}

// View narrows the registry to one extension scope, satisfying
// value.Resolver for the codec.
func (r *Registry) View(ext uint32) value.Resolver {
	return scopedView{reg: r, ext: ext}
}

type scopedView struct {
	reg *Registry
	ext uint32
}

func (v scopedView) Resolve(alias string) (value.Descriptor, error) {
	return v.reg.Resolve(v.ext, alias)
}

// Built-in v0 composite aliases, resolvable in every scope.
var builtins = map[string]value.Descriptor{
	"extension_info": value.TupleOf(
		value.Prim(value.KindString),
		value.Prim(value.KindString),
		value.Prim(value.KindString),
		value.ListOf(value.Prim(value.KindString)),
		value.ListOf(value.Prim(value.KindString)),
	),
	"problem_arg": value.TupleOf(
		value.Prim(value.KindString),
		value.Prim(value.KindBool),
		value.Prim(value.KindString),
	),
	"problem_description": value.TupleOf(
		value.Prim(value.KindString),
		value.Prim(value.KindString),
		value.ListOf(value.AliasOf("problem_arg")),
	),
	"extension_problem_list": value.ListOf(value.AliasOf("problem_description")),
}

// Builtin returns a built-in alias descriptor by name.
func Builtin(alias string) (value.Descriptor, bool) {
	d, ok := builtins[alias]
	return d, ok
}
