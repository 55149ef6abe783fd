package types

// PipelineStage is a kanban column. Stages are ordered by Order.
type PipelineStage struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Order       int    `json:"order"`
	Description string `json:"description,omitempty"`
}

// Tag labels contacts.
type Tag struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// CustomFieldType is the input type of a custom field.
type CustomFieldType string

// Supported custom field types.
const (
	FieldText      CustomFieldType = "text"
	FieldTextarea  CustomFieldType = "textarea"
	FieldSelect    CustomFieldType = "select"
	FieldNumber    CustomFieldType = "number"
	FieldCurrency  CustomFieldType = "currency"
	FieldDate      CustomFieldType = "date"
	FieldCheckbox  CustomFieldType = "checkbox"
	FieldInstagram CustomFieldType = "instagram"
)

// CustomField describes an extra contact attribute. Values live in Contact.CustomFields keyed by ID.
type CustomField struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        CustomFieldType `json:"type"`
	Required    bool            `json:"required"`
	Options     []string        `json:"options,omitempty"`
	Placeholder string          `json:"placeholder,omitempty"`
}
