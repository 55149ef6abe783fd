package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/leadflow/types"
)

// CreateContact stores a new contact with a fresh ID and indexes it for duplicate lookup.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - in: Contact fields; name, list and stage are required
//
// Returns:
//   - types.Contact: Stored contact with ID and timestamps
//   - error: types.ErrInvalidInput on validation failure, or a KV error
func (s *KVStore) CreateContact(ctx context.Context, in types.ContactInput) (types.Contact, error) {
	c, err := s.contacts.create(ctx, in.Contact())
	if err != nil {
		return types.Contact{}, err
	}

	s.index(ctx, c)

	return c, nil
}

// GetContact loads a contact by ID.
func (s *KVStore) GetContact(ctx context.Context, id string) (types.Contact, error) {
	c, _, err := s.contacts.get(ctx, id)
	return c, err
}

// UpdateContact replaces the editable fields of an existing contact.
//
// ID and CreatedAt are kept from the stored record; UpdatedAt is refreshed.
func (s *KVStore) UpdateContact(ctx context.Context, contact types.Contact) (types.Contact, error) {
	before, after, err := s.contacts.update(ctx, contact.ID, func(c *types.Contact) error {
		createdAt := c.CreatedAt
		*c = contact
		c.CreatedAt = createdAt

		return nil
	})
	if err != nil {
		return types.Contact{}, err
	}

	s.reindex(ctx, before, after)

	return after, nil
}

// UpdateContactStage moves a contact to another stage. It implements types.StageUpdater.
//
// Only the stage is written, so concurrent edits to other fields are preserved.
func (s *KVStore) UpdateContactStage(ctx context.Context, contactID, stageID string) error {
	if stageID == "" {
		return invalid("target stage is required")
	}

	_, _, err := s.contacts.update(ctx, contactID, func(c *types.Contact) error {
		c.StageID = stageID
		return nil
	})

	return err
}

// UpdateContacts applies UpdateContact to each contact concurrently.
//
// Returns:
//   - []types.Contact: Updated contacts in input order (zero values where updates failed)
//   - error: First error encountered; other updates still run to completion
func (s *KVStore) UpdateContacts(ctx context.Context, contacts []types.Contact) ([]types.Contact, error) {
	out := make([]types.Contact, len(contacts))

	var g errgroup.Group
	g.SetLimit(defaultBulkWorkers)
	for i, c := range contacts {
		g.Go(func() error {
			updated, err := s.UpdateContact(ctx, c)
			if err != nil {
				return fmt.Errorf("contact %q: %w", c.ID, err)
			}
			out[i] = updated

			return nil
		})
	}

	return out, g.Wait()
}

// DeleteContact removes a contact and its duplicate index entries.
func (s *KVStore) DeleteContact(ctx context.Context, id string) error {
	c, err := s.contacts.delete(ctx, id)
	if err != nil {
		return err
	}

	s.unindex(ctx, c.ID, dedupeKeys(c.ListID, c.Email, c.Phone))

	return nil
}

// ListContacts returns all contacts ordered by creation time.
func (s *KVStore) ListContacts(ctx context.Context) ([]types.Contact, error) {
	return s.contacts.list(ctx)
}

// FindDuplicate returns the contact in listID with the same email or phone.
//
// Emails compare case-insensitively; an empty phone never matches.
//
// Returns:
//   - types.Contact: Existing contact
//   - error: types.ErrNotFound when there is none
func (s *KVStore) FindDuplicate(ctx context.Context, listID, email, phone string) (types.Contact, error) {
	wantEmail, wantPhone := normalizeEmail(email), normalizePhone(phone)

	for _, key := range dedupeKeys(listID, email, phone) {
		start := time.Now()
		entry, err := s.kv.Get(ctx, key)
		s.observe("get", start)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
				continue
			}

			return types.Contact{}, fmt.Errorf("read duplicate index: %w", err)
		}

		id := string(entry.Value())
		c, err := s.GetContact(ctx, id)
		if err != nil && !errors.Is(err, types.ErrNotFound) {
			return types.Contact{}, err
		}

		matches := err == nil && c.ListID == listID &&
			((wantEmail != "" && normalizeEmail(c.Email) == wantEmail) ||
				(wantPhone != "" && normalizePhone(c.Phone) == wantPhone))
		if matches {
			return c, nil
		}

		s.logger.Debug("dropping stale duplicate index entry", "key", key, "contact_id", id)
		s.unindex(ctx, id, []string{key})
	}

	return types.Contact{}, fmt.Errorf("duplicate in list %q: %w", listID, types.ErrNotFound)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

// dedupeKeys returns the index keys of a contact, email first.
func dedupeKeys(listID, email, phone string) []string {
	if !validID(listID) {
		return nil
	}

	keys := make([]string, 0, 2)
	if e := normalizeEmail(email); e != "" {
		keys = append(keys, dedupeKey(listID, "email", e))
	}
	if p := normalizePhone(phone); p != "" {
		keys = append(keys, dedupeKey(listID, "phone", p))
	}

	return keys
}

func dedupeKey(listID, kind, value string) string {
	return fmt.Sprintf("dedupe.%s.%016x", listID, xxh3.HashString(kind+":"+value))
}

// index points the contact's dedupe keys at it. Failures only degrade duplicate
// detection, so they are logged and not returned.
func (s *KVStore) index(ctx context.Context, c types.Contact) {
	for _, key := range dedupeKeys(c.ListID, c.Email, c.Phone) {
		start := time.Now()
		_, err := s.kv.PutString(ctx, key, c.ID)
		s.observe("put", start)
		if err != nil {
			s.logger.Warn("failed to index contact", "contact_id", c.ID, "key", key, "error", err)
		}
	}
}

// unindex removes keys that still point at contactID.
func (s *KVStore) unindex(ctx context.Context, contactID string, keys []string) {
	for _, key := range keys {
		entry, err := s.kv.Get(ctx, key)
		if err != nil || string(entry.Value()) != contactID {
			continue
		}

		start := time.Now()
		err = s.kv.Delete(ctx, key, jetstream.LastRevision(entry.Revision()))
		s.observe("delete", start)
		if err != nil {
			s.logger.Debug("failed to remove index entry", "key", key, "error", err)
		}
	}
}

func (s *KVStore) reindex(ctx context.Context, before, after types.Contact) {
	keep := make(map[string]struct{})
	for _, key := range dedupeKeys(after.ListID, after.Email, after.Phone) {
		keep[key] = struct{}{}
	}

	var stale []string
	for _, key := range dedupeKeys(before.ListID, before.Email, before.Phone) {
		if _, ok := keep[key]; !ok {
			stale = append(stale, key)
		}
	}

	s.unindex(ctx, after.ID, stale)
	s.index(ctx, after)
}
