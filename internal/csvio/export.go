package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/arloliu/leadflow/types"
)

// Catalog holds the records an export resolves IDs against.
type Catalog struct {
	Lists        []types.List
	Stages       []types.PipelineStage
	Agents       []types.Agent
	Tags         []types.Tag
	CustomFields []types.CustomField
}

// exportHeader is the fixed part of the export header; custom field names follow.
var exportHeader = []string{
	"Name", "Email", "Phone", "Company", "List", "Stage", "Agent",
	"Tags", "Source", "Notes", "Instagram", "Created", "Updated",
}

const (
	bom        = "\uFEFF"
	dateLayout = "2006-01-02"
	tagSep     = "; "
)

// Export writes contacts as CSV.
//
// The output starts with a UTF-8 byte order mark so spreadsheet tools detect the
// encoding. IDs are resolved to names through cat; unknown IDs become empty cells and
// unknown tags are skipped. Custom field columns follow the catalog order.
//
// Parameters:
//   - w: Destination
//   - contacts: Contacts to export, in output order
//   - cat: Lists, stages, agents, tags and custom fields for name resolution
//
// Returns:
//   - error: Write error
func Export(w io.Writer, contacts []types.Contact, cat Catalog) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	lists := names(cat.Lists, func(l types.List) (string, string) { return l.ID, l.Name })
	stages := names(cat.Stages, func(s types.PipelineStage) (string, string) { return s.ID, s.Name })
	agents := names(cat.Agents, func(a types.Agent) (string, string) { return a.ID, a.Name })
	tags := names(cat.Tags, func(t types.Tag) (string, string) { return t.ID, t.Name })

	cw := csv.NewWriter(w)

	header := append([]string(nil), exportHeader...)
	for _, f := range cat.CustomFields {
		header = append(header, f.Name)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, c := range contacts {
		tagNames := make([]string, 0, len(c.Tags))
		for _, id := range c.Tags {
			if name, ok := tags[id]; ok {
				tagNames = append(tagNames, name)
			}
		}

		row := []string{
			c.Name,
			c.Email,
			c.Phone,
			c.Company,
			lists[c.ListID],
			stages[c.StageID],
			agents[c.AssignedAgentID],
			strings.Join(tagNames, tagSep),
			c.Source,
			c.Notes,
			c.Instagram,
			formatDate(c.CreatedAt),
			formatDate(c.UpdatedAt),
		}
		for _, f := range cat.CustomFields {
			row = append(row, c.CustomFields[f.ID])
		}

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write contact %q: %w", c.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	return nil
}

func names[T any](items []T, kv func(T) (string, string)) map[string]string {
	m := make(map[string]string, len(items))
	for _, it := range items {
		id, name := kv(it)
		m[id] = name
	}

	return m
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(dateLayout)
}
