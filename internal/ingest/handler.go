// Package ingest receives contacts from external forms and automation tools over HTTP.
//
// The handler accepts a JSON contact, files it into the requested (or first) list and
// stage, refreshes an existing contact of the same list with the same email or phone,
// and otherwise creates a new contact with agent distribution.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/arloliu/leadflow/internal/logging"
	"github.com/arloliu/leadflow/internal/metrics"
	"github.com/arloliu/leadflow/types"
)

const (
	defaultSource = "Webhook"
	ingestSource  = "webhook"
	maxBodyBytes  = 1 << 20
)

// Backend is the part of the CRM the webhook writes to.
type Backend interface {
	ListLists(ctx context.Context) ([]types.List, error)
	ListStages(ctx context.Context) ([]types.PipelineStage, error)
	FindDuplicate(ctx context.Context, listID, email, phone string) (types.Contact, error)
	UpdateContact(ctx context.Context, contact types.Contact) (types.Contact, error)
	// CreateContact stores a contact, picking an agent when none is set.
	CreateContact(ctx context.Context, in types.ContactInput) (types.Contact, error)
}

// Payload is the webhook request body.
type Payload struct {
	Name            string            `json:"name"`
	Email           string            `json:"email"`
	Phone           string            `json:"phone"`
	Company         string            `json:"company"`
	Instagram       string            `json:"instagram"`
	ListID          string            `json:"listId"`
	StageID         string            `json:"stageId"`
	AssignedAgentID string            `json:"assignedAgentId"`
	Tags            []string          `json:"tags"`
	CustomFields    map[string]string `json:"customFields"`
	Source          string            `json:"source"`
	Notes           string            `json:"notes"`
}

// Response is the webhook response body.
type Response struct {
	Success   bool          `json:"success"`
	ContactID string        `json:"contactId,omitempty"`
	Message   string        `json:"message,omitempty"`
	Updated   bool          `json:"updated,omitempty"`
	Data      *ResponseData `json:"data,omitempty"`
	Error     string        `json:"error,omitempty"`
	Details   string        `json:"details,omitempty"`
}

// ResponseData summarizes the stored contact. An updated contact is encoded with name
// and email only. A created contact always carries list, stage and assignedAgent, the
// latter null when nobody was assigned.
type ResponseData struct {
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	List          string  `json:"list"`
	Stage         string  `json:"stage"`
	AssignedAgent *string `json:"assignedAgent"`

	created bool
}

type updatedData struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// MarshalJSON implements json.Marshaler.
func (d ResponseData) MarshalJSON() ([]byte, error) {
	if !d.created {
		return json.Marshal(updatedData{Name: d.Name, Email: d.Email})
	}

	type createdData ResponseData

	return json.Marshal(createdData(d))
}

// Handler serves the contact webhook.
type Handler struct {
	backend Backend
	logger  types.Logger
	metrics types.IngestMetrics
}

var _ http.Handler = (*Handler)(nil)

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(logger types.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics sets the collector for intake results.
func WithMetrics(m types.IngestMetrics) Option {
	return func(h *Handler) {
		if m != nil {
			h.metrics = m
		}
	}
}

// NewHandler creates a webhook handler writing to backend.
//
// Parameters:
//   - backend: CRM backend (typically *leadflow.Service)
//   - opts: Optional configuration (WithLogger, WithMetrics)
//
// Returns:
//   - *Handler: HTTP handler
func NewHandler(backend Backend, opts ...Option) *Handler {
	h := &Handler{
		backend: backend,
		logger:  logging.NewNop(),
		metrics: metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// requestError is a client error answered with 400.
type requestError struct {
	msg string
}

func (e requestError) Error() string { return e.msg }

func badRequest(msg string) error { return requestError{msg: msg} }

// ServeHTTP handles CORS preflight and POST requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")

		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		h.reply(w, http.StatusMethodNotAllowed, Response{Error: "method not allowed"})

		return
	}

	var p Payload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&p); err != nil {
		h.metrics.RecordContactIngested(ingestSource, "rejected")
		h.reply(w, http.StatusBadRequest, Response{Error: "invalid JSON body", Details: err.Error()})

		return
	}

	resp, err := h.ingest(r.Context(), p)
	if err != nil {
		var reqErr requestError
		if errors.As(err, &reqErr) {
			h.metrics.RecordContactIngested(ingestSource, "rejected")
			h.logger.Debug("webhook contact rejected", "reason", reqErr.msg)
			h.reply(w, http.StatusBadRequest, Response{Error: reqErr.msg})

			return
		}

		h.metrics.RecordContactIngested(ingestSource, "error")
		h.logger.Error("webhook contact failed", "error", err)
		h.reply(w, http.StatusInternalServerError, Response{Error: "internal server error", Details: err.Error()})

		return
	}

	if resp.Updated {
		h.metrics.RecordContactIngested(ingestSource, "updated")
	} else {
		h.metrics.RecordContactIngested(ingestSource, "created")
	}
	h.reply(w, http.StatusOK, resp)
}

func (h *Handler) ingest(ctx context.Context, p Payload) (Response, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	if p.Name == "" || p.Email == "" {
		return Response{}, badRequest("name and email are required")
	}
	if p.Source == "" {
		p.Source = defaultSource
	}

	lists, err := h.backend.ListLists(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("load lists: %w", err)
	}
	list, ok := pickList(lists, cleanUUID(p.ListID))
	if !ok {
		return Response{}, badRequest("no list found")
	}

	in := types.ContactInput{
		Name:            p.Name,
		Email:           p.Email,
		Phone:           p.Phone,
		Company:         p.Company,
		Instagram:       p.Instagram,
		ListID:          list.ID,
		AssignedAgentID: cleanUUID(p.AssignedAgentID),
		Tags:            p.Tags,
		CustomFields:    p.CustomFields,
		Source:          p.Source,
		Notes:           p.Notes,
	}

	dup, err := h.backend.FindDuplicate(ctx, list.ID, p.Email, p.Phone)
	switch {
	case err == nil:
		updated, err := h.backend.UpdateContact(ctx, in.MergeInto(dup))
		if err != nil {
			return Response{}, fmt.Errorf("update existing contact: %w", err)
		}
		h.logger.Info("contact updated via webhook", "contact_id", updated.ID, "list_id", list.ID)

		return Response{
			Success:   true,
			ContactID: updated.ID,
			Message:   "contact updated",
			Updated:   true,
			Data:      &ResponseData{Name: updated.Name, Email: updated.Email},
		}, nil
	case !errors.Is(err, types.ErrNotFound):
		return Response{}, fmt.Errorf("check duplicates: %w", err)
	}

	stages, err := h.backend.ListStages(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("load stages: %w", err)
	}
	stage, ok := pickStage(stages, p.StageID)
	if !ok {
		return Response{}, badRequest("no stage found")
	}
	in.StageID = stage.ID

	created, err := h.backend.CreateContact(ctx, in)
	if err != nil {
		if errors.Is(err, types.ErrInvalidInput) {
			return Response{}, badRequest(err.Error())
		}

		return Response{}, fmt.Errorf("create contact: %w", err)
	}
	h.logger.Info("contact created via webhook",
		"contact_id", created.ID, "list_id", list.ID, "agent_id", created.AssignedAgentID)

	data := &ResponseData{Name: created.Name, Email: created.Email, List: list.Name, Stage: stage.Name, created: true}
	if created.AssignedAgentID != "" {
		agent := created.AssignedAgentID
		data.AssignedAgent = &agent
	}

	return Response{
		Success:   true,
		ContactID: created.ID,
		Message:   "contact created",
		Data:      data,
	}, nil
}

// pickList returns the list with id, falling back to the first list.
func pickList(lists []types.List, id string) (types.List, bool) {
	if id != "" {
		for _, l := range lists {
			if l.ID == id {
				return l, true
			}
		}
	}
	if len(lists) == 0 {
		return types.List{}, false
	}

	return lists[0], true
}

// pickStage returns the stage named by a non-empty requested ID (which must exist),
// or the first stage in pipeline order.
func pickStage(stages []types.PipelineStage, requested string) (types.PipelineStage, bool) {
	if requested != "" {
		id := cleanUUID(requested)
		for _, s := range stages {
			if id != "" && s.ID == id {
				return s, true
			}
		}

		return types.PipelineStage{}, false
	}
	if len(stages) == 0 {
		return types.PipelineStage{}, false
	}

	return stages[0], true
}

// cleanUUID returns value when it is a canonical UUID, otherwise "".
func cleanUUID(value string) string {
	value = strings.TrimSpace(value)
	if len(value) != 36 {
		return ""
	}
	if _, err := uuid.Parse(value); err != nil {
		return ""
	}

	return value
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
}

func (h *Handler) reply(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Debug("failed to write webhook response", "error", err)
	}
}
