// Package csvio reads contacts from CSV files and writes contact exports.
package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/arloliu/leadflow/internal/logging"
	"github.com/arloliu/leadflow/internal/metrics"
	"github.com/arloliu/leadflow/types"
)

// Contact fields a CSV column can be mapped to. Custom fields use CustomFieldPrefix + field ID.
const (
	FieldName      = "name"
	FieldEmail     = "email"
	FieldPhone     = "phone"
	FieldCompany   = "company"
	FieldSource    = "source"
	FieldNotes     = "notes"
	FieldInstagram = "instagram"

	CustomFieldPrefix = "custom_"
)

const ingestSource = "csv"

// emailPattern is a shape check only: something@something.tld without spaces.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Upserter stores one imported contact.
type Upserter interface {
	// UpsertContact creates the contact or refreshes its duplicate in the same list.
	UpsertContact(ctx context.Context, in types.ContactInput) (types.Contact, bool, error)
}

// ImportOptions selects where imported contacts go and how columns map to fields.
type ImportOptions struct {
	// ListID and StageID apply to every imported contact.
	ListID  string
	StageID string

	// Tags are attached to every created contact.
	Tags []string

	// Mapping maps CSV header names to contact fields (FieldName, ..., "custom_<id>").
	// Nil means AutoMap the header.
	Mapping map[string]string
}

// RowError describes a row that was not imported. Line is 1-based and counts the header.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// ImportReport summarizes an import.
type ImportReport struct {
	Total     int
	Succeeded int
	Created   int
	Updated   int
	Errors    []RowError
}

// Importer applies CSV rows to an Upserter.
type Importer struct {
	target  Upserter
	logger  types.Logger
	metrics types.IngestMetrics
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithLogger sets the importer logger.
func WithLogger(logger types.Logger) ImporterOption {
	return func(im *Importer) {
		if logger != nil {
			im.logger = logger
		}
	}
}

// WithMetrics sets the collector for per-row results.
func WithMetrics(m types.IngestMetrics) ImporterOption {
	return func(im *Importer) {
		if m != nil {
			im.metrics = m
		}
	}
}

// NewImporter creates an importer writing to target.
func NewImporter(target Upserter, opts ...ImporterOption) *Importer {
	im := &Importer{
		target:  target,
		logger:  logging.NewNop(),
		metrics: metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(im)
	}

	return im
}

// Parse reads CSV content into a header and data rows.
//
// Quotes are parsed leniently, surrounding whitespace is trimmed from every cell
// and blank lines are skipped. Rows may have fewer or more cells than the header.
//
// Returns:
//   - []string: Header cells
//   - [][]string: Data rows
//   - error: types.ErrInvalidInput when there is no data row, or a read error
func Parse(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}

	var rows [][]string
	for _, rec := range records {
		blank := true
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
			if rec[i] != "" {
				blank = false
			}
		}
		if !blank {
			rows = append(rows, rec)
		}
	}

	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("%w: csv needs a header and at least one data row", types.ErrInvalidInput)
	}
	if len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\uFEFF")
	}

	return rows[0], rows[1:], nil
}

// AutoMap guesses the contact field of each header by keyword (English and Portuguese).
// Columns without a match are left out, and each field goes to the first matching column.
func AutoMap(header []string) map[string]string {
	mapping := make(map[string]string, len(header))
	taken := make(map[string]bool, len(header))
	for _, col := range header {
		field := guessField(strings.ToLower(col))
		if field == "" || taken[field] {
			continue
		}
		taken[field] = true
		mapping[col] = field
	}

	return mapping
}

func guessField(lower string) string {
	switch {
	case containsAny(lower, "nome", "name"):
		return FieldName
	case containsAny(lower, "email", "e-mail"):
		return FieldEmail
	case containsAny(lower, "telefone", "phone", "celular"):
		return FieldPhone
	case containsAny(lower, "empresa", "company"):
		return FieldCompany
	case containsAny(lower, "fonte", "source"):
		return FieldSource
	case containsAny(lower, "instagram", "insta"):
		return FieldInstagram
	case containsAny(lower, "observa", "notes", "nota"):
		return FieldNotes
	default:
		return ""
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}

	return false
}

// Import parses r and upserts one contact per data row.
//
// Rows without name or email, with a malformed email, or rejected by the target are
// collected in the report and skipped. Cancellation stops the import and returns the
// partial report together with the context error.
//
// Parameters:
//   - ctx: Context for cancellation
//   - r: CSV content
//   - opts: Target list, stage, tags and column mapping
//
// Returns:
//   - ImportReport: Per-row outcome
//   - error: Parse error, missing required mapping, or cancellation
func (im *Importer) Import(ctx context.Context, r io.Reader, opts ImportOptions) (ImportReport, error) {
	header, rows, err := Parse(r)
	if err != nil {
		return ImportReport{}, err
	}

	mapping := opts.Mapping
	if mapping == nil {
		mapping = AutoMap(header)
	}
	if err := requireMapped(mapping, FieldName, FieldEmail); err != nil {
		return ImportReport{}, err
	}

	report := ImportReport{Total: len(rows)}
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		line := i + 2
		in := buildInput(row, header, mapping, opts)

		if in.Name == "" || in.Email == "" {
			im.reject(&report, line, "name and email are required")
			continue
		}
		if !emailPattern.MatchString(in.Email) {
			im.reject(&report, line, fmt.Sprintf("invalid email (%s)", in.Email))
			continue
		}

		_, updated, err := im.target.UpsertContact(ctx, in)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return report, ctxErr
				}
			}
			im.logger.Warn("csv row not imported", "line", line, "error", err)
			im.metrics.RecordContactIngested(ingestSource, "error")
			report.Errors = append(report.Errors, RowError{Line: line, Reason: err.Error()})

			continue
		}

		report.Succeeded++
		if updated {
			report.Updated++
			im.metrics.RecordContactIngested(ingestSource, "updated")
		} else {
			report.Created++
			im.metrics.RecordContactIngested(ingestSource, "created")
		}
	}

	im.logger.Info("csv import finished",
		"total", report.Total, "succeeded", report.Succeeded, "errors", len(report.Errors))

	return report, nil
}

func (im *Importer) reject(report *ImportReport, line int, reason string) {
	im.metrics.RecordContactIngested(ingestSource, "rejected")
	report.Errors = append(report.Errors, RowError{Line: line, Reason: reason})
}

func requireMapped(mapping map[string]string, fields ...string) error {
	mapped := make(map[string]bool, len(mapping))
	for _, f := range mapping {
		mapped[f] = true
	}
	for _, f := range fields {
		if !mapped[f] {
			return fmt.Errorf("%w: no column mapped to %q", types.ErrInvalidInput, f)
		}
	}

	return nil
}

// buildInput fills a contact from row. Columns are visited in header order and a field
// is taken by the first column mapped to it.
func buildInput(row, header []string, mapping map[string]string, opts ImportOptions) types.ContactInput {
	in := types.ContactInput{
		ListID:       opts.ListID,
		StageID:      opts.StageID,
		Tags:         append([]string(nil), opts.Tags...),
		CustomFields: map[string]string{},
	}

	taken := make(map[string]bool, len(mapping))
	for idx, col := range header {
		field, ok := mapping[col]
		if !ok || taken[field] || idx >= len(row) {
			continue
		}
		taken[field] = true
		value := row[idx]

		switch field {
		case FieldName:
			in.Name = value
		case FieldEmail:
			in.Email = value
		case FieldPhone:
			in.Phone = value
		case FieldCompany:
			in.Company = value
		case FieldSource:
			in.Source = value
		case FieldNotes:
			in.Notes = value
		case FieldInstagram:
			in.Instagram = strings.TrimPrefix(value, "@")
		default:
			if id, ok := strings.CutPrefix(field, CustomFieldPrefix); ok && id != "" {
				in.CustomFields[id] = value
			}
		}
	}

	return in
}
