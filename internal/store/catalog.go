package store

import (
	"context"

	"github.com/arloliu/leadflow/types"
)

// CreateList stores a new list. Distribution rules must reference distinct agents
// and carry non-negative percentages.
func (s *KVStore) CreateList(ctx context.Context, l types.List) (types.List, error) {
	l.ID = ""
	return s.lists.create(ctx, l)
}

// GetList loads a list by ID.
func (s *KVStore) GetList(ctx context.Context, id string) (types.List, error) {
	l, _, err := s.lists.get(ctx, id)
	return l, err
}

// UpdateList replaces name, description, color and distribution rules of a list.
func (s *KVStore) UpdateList(ctx context.Context, l types.List) (types.List, error) {
	_, after, err := s.lists.update(ctx, l.ID, func(cur *types.List) error {
		cur.Name = l.Name
		cur.Description = l.Description
		cur.Color = l.Color
		cur.DistributionRules = l.DistributionRules

		return nil
	})

	return after, err
}

// DeleteList removes a list. Its contacts are left in place.
func (s *KVStore) DeleteList(ctx context.Context, id string) error {
	_, err := s.lists.delete(ctx, id)
	return err
}

// ListLists returns all lists, oldest first.
func (s *KVStore) ListLists(ctx context.Context) ([]types.List, error) {
	return s.lists.list(ctx)
}

// CreateAgent stores a new agent.
func (s *KVStore) CreateAgent(ctx context.Context, a types.Agent) (types.Agent, error) {
	a.ID = ""
	return s.agents.create(ctx, a)
}

// GetAgent loads an agent by ID.
func (s *KVStore) GetAgent(ctx context.Context, id string) (types.Agent, error) {
	a, _, err := s.agents.get(ctx, id)
	return a, err
}

// UpdateAgent replaces the profile and active flag of an agent.
func (s *KVStore) UpdateAgent(ctx context.Context, a types.Agent) (types.Agent, error) {
	_, after, err := s.agents.update(ctx, a.ID, func(cur *types.Agent) error {
		createdAt := cur.CreatedAt
		*cur = a
		cur.CreatedAt = createdAt

		return nil
	})

	return after, err
}

// DeleteAgent removes an agent. Rules that still reference it are ignored by distribution.
func (s *KVStore) DeleteAgent(ctx context.Context, id string) error {
	_, err := s.agents.delete(ctx, id)
	return err
}

// ListAgents returns all agents, oldest first. That order drives round-robin distribution.
func (s *KVStore) ListAgents(ctx context.Context) ([]types.Agent, error) {
	return s.agents.list(ctx)
}

// CreateStage stores a new pipeline stage.
func (s *KVStore) CreateStage(ctx context.Context, st types.PipelineStage) (types.PipelineStage, error) {
	st.ID = ""
	return s.stages.create(ctx, st)
}

// GetStage loads a stage by ID.
func (s *KVStore) GetStage(ctx context.Context, id string) (types.PipelineStage, error) {
	st, _, err := s.stages.get(ctx, id)
	return st, err
}

// UpdateStage replaces a stage.
func (s *KVStore) UpdateStage(ctx context.Context, st types.PipelineStage) (types.PipelineStage, error) {
	_, after, err := s.stages.update(ctx, st.ID, func(cur *types.PipelineStage) error {
		*cur = st
		return nil
	})

	return after, err
}

// DeleteStage removes a stage.
func (s *KVStore) DeleteStage(ctx context.Context, id string) error {
	_, err := s.stages.delete(ctx, id)
	return err
}

// ListStages returns all stages sorted by Order.
func (s *KVStore) ListStages(ctx context.Context) ([]types.PipelineStage, error) {
	return s.stages.list(ctx)
}

// CreateTag stores a new tag.
func (s *KVStore) CreateTag(ctx context.Context, t types.Tag) (types.Tag, error) {
	t.ID = ""
	return s.tags.create(ctx, t)
}

// UpdateTag replaces a tag.
func (s *KVStore) UpdateTag(ctx context.Context, t types.Tag) (types.Tag, error) {
	_, after, err := s.tags.update(ctx, t.ID, func(cur *types.Tag) error {
		*cur = t
		return nil
	})

	return after, err
}

// DeleteTag removes a tag. Contacts keep the dangling tag ID until edited.
func (s *KVStore) DeleteTag(ctx context.Context, id string) error {
	_, err := s.tags.delete(ctx, id)
	return err
}

// ListTags returns all tags sorted by name.
func (s *KVStore) ListTags(ctx context.Context) ([]types.Tag, error) {
	return s.tags.list(ctx)
}

// CreateCustomField stores a new custom field definition.
func (s *KVStore) CreateCustomField(ctx context.Context, f types.CustomField) (types.CustomField, error) {
	f.ID = ""
	return s.fields.create(ctx, f)
}

// UpdateCustomField replaces a custom field definition.
func (s *KVStore) UpdateCustomField(ctx context.Context, f types.CustomField) (types.CustomField, error) {
	_, after, err := s.fields.update(ctx, f.ID, func(cur *types.CustomField) error {
		*cur = f
		return nil
	})

	return after, err
}

// DeleteCustomField removes a custom field definition.
func (s *KVStore) DeleteCustomField(ctx context.Context, id string) error {
	_, err := s.fields.delete(ctx, id)
	return err
}

// ListCustomFields returns all custom field definitions sorted by name.
func (s *KVStore) ListCustomFields(ctx context.Context) ([]types.CustomField, error) {
	return s.fields.list(ctx)
}
