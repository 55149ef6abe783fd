package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/leadflow/types"
)

// collection stores records of one kind under "<prefix>.<id>".
type collection[T any] struct {
	store    *KVStore
	prefix   string
	id       func(*T) *string
	validate func(*T) error
	stamp    func(v *T, now time.Time, created bool)
	compare  func(a, b T) int
}

func (c collection[T]) key(id string) string {
	return c.prefix + "." + id
}

// validID rejects IDs that cannot be a single KV key token.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, ".*> \t\r\n")
}

func (c collection[T]) notFound(id string) error {
	return fmt.Errorf("%s %q: %w", c.prefix, id, types.ErrNotFound)
}

func (c collection[T]) create(ctx context.Context, v T) (T, error) {
	idp := c.id(&v)
	if *idp == "" {
		*idp = c.store.newID()
	}
	if !validID(*idp) {
		var zero T
		return zero, fmt.Errorf("%w: %s id %q", types.ErrInvalidInput, c.prefix, *idp)
	}
	if err := c.validate(&v); err != nil {
		var zero T
		return zero, err
	}
	if c.stamp != nil {
		c.stamp(&v, c.store.clock.Now().UTC(), true)
	}

	data, err := json.Marshal(v)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("encode %s: %w", c.prefix, err)
	}

	start := time.Now()
	_, err = c.store.kv.Create(ctx, c.key(*idp), data)
	c.store.observe("create", start)
	if err != nil {
		var zero T
		if errors.Is(err, jetstream.ErrKeyExists) {
			return zero, fmt.Errorf("%w: %s %q already exists", types.ErrInvalidInput, c.prefix, *idp)
		}

		return zero, fmt.Errorf("create %s: %w", c.prefix, err)
	}

	return v, nil
}

func (c collection[T]) get(ctx context.Context, id string) (T, uint64, error) {
	var v T
	if !validID(id) {
		return v, 0, c.notFound(id)
	}

	start := time.Now()
	entry, err := c.store.kv.Get(ctx, c.key(id))
	c.store.observe("get", start)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return v, 0, c.notFound(id)
		}

		return v, 0, fmt.Errorf("get %s: %w", c.prefix, err)
	}

	if err := json.Unmarshal(entry.Value(), &v); err != nil {
		return v, 0, fmt.Errorf("decode %s %q: %w", c.prefix, id, err)
	}

	return v, entry.Revision(), nil
}

// update applies fn to the stored record and writes it back with a revision check,
// re-reading and re-applying fn when another writer got there first.
func (c collection[T]) update(ctx context.Context, id string, fn func(*T) error) (T, T, error) {
	var zero T
	for attempt := range c.store.casRetries {
		before, rev, err := c.get(ctx, id)
		if err != nil {
			return zero, zero, err
		}

		after := before
		if err := fn(&after); err != nil {
			return zero, zero, err
		}
		*c.id(&after) = id
		if err := c.validate(&after); err != nil {
			return zero, zero, err
		}
		if c.stamp != nil {
			c.stamp(&after, c.store.clock.Now().UTC(), false)
		}

		data, err := json.Marshal(after)
		if err != nil {
			return zero, zero, fmt.Errorf("encode %s: %w", c.prefix, err)
		}

		start := time.Now()
		_, err = c.store.kv.Update(ctx, c.key(id), data, rev)
		c.store.observe("update", start)
		if err == nil {
			return before, after, nil
		}
		if !errors.Is(err, jetstream.ErrKeyExists) {
			return zero, zero, fmt.Errorf("update %s: %w", c.prefix, err)
		}

		c.store.logger.Debug("revision conflict, retrying", "key", c.key(id), "attempt", attempt+1)
	}

	return zero, zero, fmt.Errorf("update %s %q: %w", c.prefix, id, types.ErrConflict)
}

func (c collection[T]) delete(ctx context.Context, id string) (T, error) {
	v, rev, err := c.get(ctx, id)
	if err != nil {
		return v, err
	}

	start := time.Now()
	err = c.store.kv.Delete(ctx, c.key(id), jetstream.LastRevision(rev))
	c.store.observe("delete", start)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return v, fmt.Errorf("delete %s %q: %w", c.prefix, id, types.ErrConflict)
		}

		return v, fmt.Errorf("delete %s: %w", c.prefix, err)
	}

	return v, nil
}

func (c collection[T]) list(ctx context.Context) ([]T, error) {
	start := time.Now()
	lister, err := c.store.kv.ListKeysFiltered(ctx, c.prefix+".*")
	if err != nil {
		if types.IsNoKeysFoundError(err) {
			return []T{}, nil
		}

		return nil, fmt.Errorf("list %s keys: %w", c.prefix, err)
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for key := range lister.Keys() {
		keys = append(keys, key)
	}
	c.store.observe("keys", start)

	out := make([]T, 0, len(keys))
	for _, key := range keys {
		v, _, err := c.get(ctx, strings.TrimPrefix(key, c.prefix+"."))
		if err != nil {
			// Deleted between listing and reading.
			if errors.Is(err, types.ErrNotFound) {
				continue
			}

			return nil, err
		}
		out = append(out, v)
	}

	if c.compare != nil {
		slices.SortStableFunc(out, c.compare)
	}

	return out, nil
}
