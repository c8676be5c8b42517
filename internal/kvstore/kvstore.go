// Package kvstore is a hierarchical JSON key-value store.
//
// A path such as "a-x-com/conversations/0" names a node inside a tree. The
// first segment selects a root document kept by a Backend; the remaining
// segments walk into that document. Writes below a root are read-modify-write
// operations on the whole root document, serialized by the backend.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no value exists at a path
	ErrNotFound = errors.New("kvstore: node not found")
	// ErrInvalidPath is returned for empty paths
	ErrInvalidPath = errors.New("kvstore: invalid path")
)

// Backend stores root documents as raw JSON
type Backend interface {
	// Get returns the document stored under key or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// Put replaces the document stored under key
	Put(ctx context.Context, key string, value []byte) error
	// Update atomically replaces the document under key with fn's result.
	// fn receives nil when the key is absent. It may be called more than once
	// by backends that retry on conflict, so it must not have side effects.
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
}

// Tree is a namespace of root documents on a backend
type Tree struct {
	backend   Backend
	namespace string
}

// New creates a tree whose root keys are stored as "<namespace>/<root>"
func New(backend Backend, namespace string) *Tree {
	return &Tree{backend: backend, namespace: namespace}
}

// Ref returns a reference to the node at path
func (t *Tree) Ref(path string) Ref {
	segs := splitPath(path)
	if len(segs) == 0 {
		return Ref{tree: t, err: fmt.Errorf("%w: %q", ErrInvalidPath, path)}
	}
	return Ref{tree: t, root: segs[0], sub: segs[1:]}
}

// Ref points at a node of a tree
type Ref struct {
	tree *Tree
	root string
	sub  []string
	err  error
}

// Child returns a reference to a node below r
func (r Ref) Child(path string) Ref {
	if r.err != nil {
		return r
	}
	sub := make([]string, 0, len(r.sub)+1)
	sub = append(sub, r.sub...)
	sub = append(sub, splitPath(path)...)
	return Ref{tree: r.tree, root: r.root, sub: sub}
}

// Path returns the slash-separated path of r
func (r Ref) Path() string {
	return strings.Join(append([]string{r.root}, r.sub...), "/")
}

func (r Ref) key() string {
	return r.tree.namespace + "/" + r.root
}

// Get decodes the node at r into dst
func (r Ref) Get(ctx context.Context, dst any) error {
	raw, err := r.Raw(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode node %s: %w", r.Path(), err)
	}
	return nil
}

// Raw returns the JSON encoding of the node at r
func (r Ref) Raw(ctx context.Context) (json.RawMessage, error) {
	if r.err != nil {
		return nil, r.err
	}
	data, err := r.tree.backend.Get(ctx, r.key())
	if err != nil {
		return nil, err
	}
	if len(r.sub) == 0 {
		if isNull(data) {
			return nil, ErrNotFound
		}
		return data, nil
	}
	doc, err := decodeDoc(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", r.root, err)
	}
	node, ok := lookup(doc, r.sub)
	if !ok {
		return nil, ErrNotFound
	}
	return json.Marshal(node)
}

// Set replaces the node at r with value, creating intermediate objects
func (r Ref) Set(ctx context.Context, value any) error {
	if r.err != nil {
		return r.err
	}
	if len(r.sub) == 0 {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode node %s: %w", r.Path(), err)
		}
		return r.tree.backend.Put(ctx, r.key(), data)
	}
	generic, err := toGeneric(value)
	if err != nil {
		return fmt.Errorf("failed to encode node %s: %w", r.Path(), err)
	}
	return r.tree.backend.Update(ctx, r.key(), func(current []byte) ([]byte, error) {
		doc, err := decodeDoc(current)
		if err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", r.root, err)
		}
		return json.Marshal(assign(doc, r.sub, generic))
	})
}

// Transaction atomically replaces the node at r with the value returned by fn.
// fn receives nil when the node does not exist; an error from fn aborts the
// write and is returned unchanged.
func (r Ref) Transaction(ctx context.Context, fn func(current json.RawMessage) (any, error)) error {
	if r.err != nil {
		return r.err
	}
	return r.tree.backend.Update(ctx, r.key(), func(current []byte) ([]byte, error) {
		doc, err := decodeDoc(current)
		if err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", r.root, err)
		}

		var raw json.RawMessage
		if node, ok := lookup(doc, r.sub); ok {
			if raw, err = json.Marshal(node); err != nil {
				return nil, err
			}
		}

		next, err := fn(raw)
		if err != nil {
			return nil, err
		}
		generic, err := toGeneric(next)
		if err != nil {
			return nil, fmt.Errorf("failed to encode node %s: %w", r.Path(), err)
		}
		return json.Marshal(assign(doc, r.sub, generic))
	})
}
