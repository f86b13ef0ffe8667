// Package ctxval attaches a mutable bag of values to a context so that
// inner layers can enrich what outer layers later read, e.g. log fields set
// by a handler and picked up by the request logger.
package ctxval

import (
	"context"
	"sync"
)

// LogKey marks a value that should be attached to every log line written
// with the context.
type LogKey string

func Wrap(ctx context.Context) context.Context {
	if _, ok := getBag(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, bagKey{}, &bag{})
}

func Set[K comparable, V any](ctx context.Context, k K, v V) {
	b, ok := getBag(ctx)
	if !ok {
		return
	}
	b.set(k, v)
}

func Get[K comparable, V any](ctx context.Context, k K) (V, bool) {
	b, ok := getBag(ctx)
	if !ok {
		return *new(V), false
	}
	v, ok := b.get(k).(V)
	return v, ok
}

// Fields returns the LogKey values as alternating key/value pairs in the
// order they were first set.
func Fields(ctx context.Context) []any {
	b, ok := getBag(ctx)
	if !ok {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var ret []any
	for _, key := range b.order {
		if k, ok := key.(LogKey); ok {
			ret = append(ret, string(k), b.values[key])
		}
	}
	return ret
}

type bagKey struct{}

type bag struct {
	mu     sync.Mutex
	values map[any]any
	order  []any
}

func (b *bag) get(key any) any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.values[key]
}

func (b *bag) set(key, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.values == nil {
		b.values = map[any]any{}
	}
	if _, ok := b.values[key]; !ok {
		b.order = append(b.order, key)
	}
	b.values[key] = value
}

func getBag(ctx context.Context) (*bag, bool) {
	b, ok := ctx.Value(bagKey{}).(*bag)
	return b, ok
}
