package store

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/arloliu/leadflow/types"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func validateContact(c *types.Contact) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Instagram = strings.TrimPrefix(strings.TrimSpace(c.Instagram), "@")

	if c.Name == "" {
		return invalid("contact name is required")
	}
	if c.ListID == "" {
		return invalid("contact list is required")
	}
	if c.StageID == "" {
		return invalid("contact stage is required")
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.CustomFields == nil {
		c.CustomFields = map[string]string{}
	}

	return nil
}

func validateList(l *types.List) error {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return invalid("list name is required")
	}

	seen := make(map[string]struct{}, len(l.DistributionRules))
	for i, r := range l.DistributionRules {
		if r.AgentID == "" {
			return invalid("distribution rule %d has no agent", i)
		}
		if r.Percentage < 0 {
			return invalid("distribution rule %d has negative percentage %d", i, r.Percentage)
		}
		if _, dup := seen[r.AgentID]; dup {
			return invalid("agent %q appears in more than one distribution rule", r.AgentID)
		}
		seen[r.AgentID] = struct{}{}
	}
	if l.DistributionRules == nil {
		l.DistributionRules = []types.DistributionRule{}
	}

	return nil
}

func validateAgent(a *types.Agent) error {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = strings.TrimSpace(a.Email)
	if a.Name == "" {
		return invalid("agent name is required")
	}

	return nil
}

func validateStage(s *types.PipelineStage) error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return invalid("stage name is required")
	}

	return nil
}

func validateTag(t *types.Tag) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return invalid("tag name is required")
	}

	return nil
}

var fieldTypes = map[types.CustomFieldType]struct{}{
	types.FieldText:      {},
	types.FieldTextarea:  {},
	types.FieldSelect:    {},
	types.FieldNumber:    {},
	types.FieldCurrency:  {},
	types.FieldDate:      {},
	types.FieldCheckbox:  {},
	types.FieldInstagram: {},
}

func validateCustomField(f *types.CustomField) error {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return invalid("custom field name is required")
	}
	if _, ok := fieldTypes[f.Type]; !ok {
		return invalid("unknown custom field type %q", f.Type)
	}
	if f.Type == types.FieldSelect && len(f.Options) == 0 {
		return invalid("select field %q needs at least one option", f.Name)
	}

	return nil
}

// Orderings used by list operations. Every one ends on ID so results are stable.

func compareContacts(a, b types.Contact) int {
	return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
}

func compareLists(a, b types.List) int {
	return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
}

func compareAgents(a, b types.Agent) int {
	return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
}

func compareStages(a, b types.PipelineStage) int {
	return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.ID, b.ID))
}

func compareTags(a, b types.Tag) int {
	return cmp.Or(cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)), cmp.Compare(a.ID, b.ID))
}

func compareCustomFields(a, b types.CustomField) int {
	return cmp.Or(cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)), cmp.Compare(a.ID, b.ID))
}
