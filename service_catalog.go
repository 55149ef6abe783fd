package leadflow

import (
	"context"

	"github.com/arloliu/leadflow/internal/store"
)

// withStore runs fn against the running store under OperationTimeout.
func withStore[T any](s *Service, ctx context.Context, fn func(context.Context, *store.KVStore) (T, error)) (T, error) {
	st, _, err := s.components()
	if err != nil {
		var zero T
		return zero, err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	return fn(ctx, st)
}

func withStoreErr(s *Service, ctx context.Context, fn func(context.Context, *store.KVStore) error) error {
	_, err := withStore(s, ctx, func(ctx context.Context, st *store.KVStore) (struct{}, error) {
		return struct{}{}, fn(ctx, st)
	})

	return err
}

// GetContact loads a contact by ID.
func (s *Service) GetContact(ctx context.Context, id string) (Contact, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) (Contact, error) {
		return st.GetContact(ctx, id)
	})
}

// UpdateContact replaces the editable fields of a contact. The agent is not redistributed.
func (s *Service) UpdateContact(ctx context.Context, contact Contact) (Contact, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) (Contact, error) {
		return st.UpdateContact(ctx, contact)
	})
}

// UpdateContacts updates many contacts concurrently (bulk edit).
func (s *Service) UpdateContacts(ctx context.Context, contacts []Contact) ([]Contact, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) ([]Contact, error) {
		return st.UpdateContacts(ctx, contacts)
	})
}

// DeleteContact removes a contact.
func (s *Service) DeleteContact(ctx context.Context, id string) error {
	return withStoreErr(s, ctx, func(ctx context.Context, st *store.KVStore) error {
		return st.DeleteContact(ctx, id)
	})
}

// ListContacts returns all contacts, oldest first.
func (s *Service) ListContacts(ctx context.Context) ([]Contact, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) ([]Contact, error) {
		return st.ListContacts(ctx)
	})
}

// FindDuplicate returns the contact of listID with the same email or phone.
func (s *Service) FindDuplicate(ctx context.Context, listID, email, phone string) (Contact, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) (Contact, error) {
		return st.FindDuplicate(ctx, listID, email, phone)
	})
}

// CreateList stores a new list with its distribution rules.
func (s *Service) CreateList(ctx context.Context, list List) (List, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) (List, error) {
		return st.CreateList(ctx, list)
	})
}

// GetList loads a list by ID.
func (s *Service) GetList(ctx context.Context, id string) (List, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) (List, error) {
		return st.GetList(ctx, id)
	})
}

// UpdateList replaces a list's name, description, color and distribution rules.
func (s *Service) UpdateList(ctx context.Context, list List) (List, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) (List, error) {
		return st.UpdateList(ctx, list)
	})
}

// DeleteList removes a list. Its contacts are kept.
func (s *Service) DeleteList(ctx context.Context, id string) error {
	return withStoreErr(s, ctx, func(ctx context.Context, st *store.KVStore) error {
		return st.DeleteList(ctx, id)
	})
}

// ListLists returns all lists, oldest first.
func (s *Service) ListLists(ctx context.Context) ([]List, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) ([]List, error) {
		return st.ListLists(ctx)
	})
}

// CreateAgent stores a new agent.
func (s *Service) CreateAgent(ctx context.Context, agent Agent) (Agent, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) (Agent, error) {
		return st.CreateAgent(ctx, agent)
	})
}

// GetAgent loads an agent by ID.
func (s *Service) GetAgent(ctx context.Context, id string) (Agent, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) (Agent, error) {
		return st.GetAgent(ctx, id)
	})
}

// UpdateAgent replaces an agent's profile and active flag.
func (s *Service) UpdateAgent(ctx context.Context, agent Agent) (Agent, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) (Agent, error) {
		return st.UpdateAgent(ctx, agent)
	})
}

// DeleteAgent removes an agent.
func (s *Service) DeleteAgent(ctx context.Context, id string) error {
	return withStoreErr(s, ctx, func(ctx context.Context, st *store.KVStore) error {
		return st.DeleteAgent(ctx, id)
	})
}

// ListAgents returns all agents in creation order.
func (s *Service) ListAgents(ctx context.Context) ([]Agent, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) ([]Agent, error) {
		return st.ListAgents(ctx)
	})
}

// CreateStage stores a new pipeline stage.
func (s *Service) CreateStage(ctx context.Context, stage PipelineStage) (PipelineStage, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) (PipelineStage, error) {
		return st.CreateStage(ctx, stage)
	})
}

// GetStage loads a stage by ID.
func (s *Service) GetStage(ctx context.Context, id string) (PipelineStage, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) (PipelineStage, error) {
		return st.GetStage(ctx, id)
	})
}

// UpdateStage replaces a stage.
func (s *Service) UpdateStage(ctx context.Context, stage PipelineStage) (PipelineStage, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) (PipelineStage, error) {
		return st.UpdateStage(ctx, stage)
	})
}

// DeleteStage removes a stage.
func (s *Service) DeleteStage(ctx context.Context, id string) error {
	return withStoreErr(s, ctx, func(ctx context.Context, st *store.KVStore) error {
		return st.DeleteStage(ctx, id)
	})
}

// ListStages returns all stages by pipeline order.
func (s *Service) ListStages(ctx context.Context) ([]PipelineStage, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) ([]PipelineStage, error) {
		return st.ListStages(ctx)
	})
}

// CreateTag stores a new tag.
func (s *Service) CreateTag(ctx context.Context, tag Tag) (Tag, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) (Tag, error) {
		return st.CreateTag(ctx, tag)
	})
}

// UpdateTag replaces a tag.
func (s *Service) UpdateTag(ctx context.Context, tag Tag) (Tag, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) (Tag, error) {
		return st.UpdateTag(ctx, tag)
	})
}

// DeleteTag removes a tag. Contacts keep the dangling tag ID; export skips it.
func (s *Service) DeleteTag(ctx context.Context, id string) error {
	return withStoreErr(s, ctx, func(ctx context.Context, st *store.KVStore) error {
		return st.DeleteTag(ctx, id)
	})
}

// ListTags returns all tags by name.
func (s *Service) ListTags(ctx context.Context) ([]Tag, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) ([]Tag, error) {
		return st.ListTags(ctx)
	})
}

// CreateCustomField stores a new custom field definition.
func (s *Service) CreateCustomField(ctx context.Context, field CustomField) (CustomField, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) (CustomField, error) {
		return st.CreateCustomField(ctx, field)
	})
}

// UpdateCustomField replaces a custom field definition.
func (s *Service) UpdateCustomField(ctx context.Context, field CustomField) (CustomField, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) (CustomField, error) {
		return st.UpdateCustomField(ctx, field)
	})
}

// DeleteCustomField removes a custom field definition.
func (s *Service) DeleteCustomField(ctx context.Context, id string) error {
	return withStoreErr(s, ctx, func(ctx context.Context, st *store.KVStore) error {
		return st.DeleteCustomField(ctx, id)
	})
}

// ListCustomFields returns all custom field definitions by name.
func (s *Service) ListCustomFields(ctx context.Context) ([]CustomField, error) {
	return withStore(s, ctx, func(ctx context.Context, st *store.KVStore) ([]CustomField, error) {
		return st.ListCustomFields(ctx)
	})
}
