package types

import "time"

// Contact is a lead tracked by the CRM.
//
// A contact belongs to exactly one list and sits in exactly one pipeline stage.
// StageID is the only field mutated by the movement coordinator; AssignedAgentID
// is filled by the distribution strategy when the contact is created.
type Contact struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Email           string            `json:"email"`
	Phone           string            `json:"phone,omitempty"`
	Company         string            `json:"company,omitempty"`
	Instagram       string            `json:"instagram,omitempty"`
	ListID          string            `json:"listId"`
	StageID         string            `json:"stageId"`
	AssignedAgentID string            `json:"assignedAgentId,omitempty"`
	Tags            []string          `json:"tags"`
	CustomFields    map[string]string `json:"customFields"`
	Source          string            `json:"source,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// ContactInput carries the writable fields of a contact.
//
// It is the payload for creating contacts from forms, CSV rows and webhooks.
type ContactInput struct {
	Name            string            `json:"name"`
	Email           string            `json:"email"`
	Phone           string            `json:"phone,omitempty"`
	Company         string            `json:"company,omitempty"`
	Instagram       string            `json:"instagram,omitempty"`
	ListID          string            `json:"listId"`
	StageID         string            `json:"stageId"`
	AssignedAgentID string            `json:"assignedAgentId,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
	CustomFields    map[string]string `json:"customFields,omitempty"`
	Source          string            `json:"source,omitempty"`
	Notes           string            `json:"notes,omitempty"`
}

// Contact converts the input into a contact without identity or timestamps.
//
// Nil tags and custom fields are normalized to empty values so that stored
// documents always carry both collections.
func (in ContactInput) Contact() Contact {
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	fields := in.CustomFields
	if fields == nil {
		fields = map[string]string{}
	}

	return Contact{
		Name:            in.Name,
		Email:           in.Email,
		Phone:           in.Phone,
		Company:         in.Company,
		Instagram:       in.Instagram,
		ListID:          in.ListID,
		StageID:         in.StageID,
		AssignedAgentID: in.AssignedAgentID,
		Tags:            tags,
		CustomFields:    fields,
		Source:          in.Source,
		Notes:           in.Notes,
	}
}

// ContactsInList returns the contacts that belong to the given list.
func ContactsInList(contacts []Contact, listID string) []Contact {
	result := make([]Contact, 0, len(contacts))
	for _, c := range contacts {
		if c.ListID == listID {
			result = append(result, c)
		}
	}

	return result
}

// MergeInto refreshes an existing contact with the intake fields of in.
//
// Used when an intake matches a duplicate: profile fields, custom fields, source and
// notes are replaced while list, stage, agent and tags stay as stored.
func (in ContactInput) MergeInto(c Contact) Contact {
	c.Name = in.Name
	c.Email = in.Email
	c.Phone = in.Phone
	c.Company = in.Company
	c.Instagram = in.Instagram
	c.CustomFields = in.CustomFields
	if c.CustomFields == nil {
		c.CustomFields = map[string]string{}
	}
	c.Source = in.Source
	c.Notes = in.Notes

	return c
}
