package types

import "context"

// StageUpdater persists contact stage changes.
//
// This is the single collaborator of the movement coordinator. Any returned
// error is treated as a failed attempt.
type StageUpdater interface {
	// UpdateContactStage sets the stage of a contact.
	UpdateContactStage(ctx context.Context, contactID, stageID string) error
}

// ContactStore is the persistence surface used by the service.
//
// Implementations must be safe for concurrent use. Get, Update and Delete methods
// return ErrNotFound for missing entities and ErrInvalidInput for records that fail
// validation.
type ContactStore interface {
	StageUpdater

	CreateContact(ctx context.Context, input ContactInput) (Contact, error)
	GetContact(ctx context.Context, id string) (Contact, error)
	UpdateContact(ctx context.Context, contact Contact) (Contact, error)
	UpdateContacts(ctx context.Context, contacts []Contact) ([]Contact, error)
	DeleteContact(ctx context.Context, id string) error
	ListContacts(ctx context.Context) ([]Contact, error)
	// FindDuplicate returns the contact of listID sharing the email or phone.
	FindDuplicate(ctx context.Context, listID, email, phone string) (Contact, error)

	CreateList(ctx context.Context, list List) (List, error)
	GetList(ctx context.Context, id string) (List, error)
	UpdateList(ctx context.Context, list List) (List, error)
	DeleteList(ctx context.Context, id string) error
	ListLists(ctx context.Context) ([]List, error)

	CreateAgent(ctx context.Context, agent Agent) (Agent, error)
	GetAgent(ctx context.Context, id string) (Agent, error)
	UpdateAgent(ctx context.Context, agent Agent) (Agent, error)
	DeleteAgent(ctx context.Context, id string) error
	ListAgents(ctx context.Context) ([]Agent, error)

	CreateStage(ctx context.Context, stage PipelineStage) (PipelineStage, error)
	GetStage(ctx context.Context, id string) (PipelineStage, error)
	UpdateStage(ctx context.Context, stage PipelineStage) (PipelineStage, error)
	DeleteStage(ctx context.Context, id string) error
	ListStages(ctx context.Context) ([]PipelineStage, error)

	CreateTag(ctx context.Context, tag Tag) (Tag, error)
	UpdateTag(ctx context.Context, tag Tag) (Tag, error)
	DeleteTag(ctx context.Context, id string) error
	ListTags(ctx context.Context) ([]Tag, error)

	CreateCustomField(ctx context.Context, field CustomField) (CustomField, error)
	UpdateCustomField(ctx context.Context, field CustomField) (CustomField, error)
	DeleteCustomField(ctx context.Context, id string) error
	ListCustomFields(ctx context.Context) ([]CustomField, error)
}
