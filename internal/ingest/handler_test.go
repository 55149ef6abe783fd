package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	leadflowtest "github.com/arloliu/leadflow/testing"
	"github.com/arloliu/leadflow/types"
)

type fakeBackend struct {
	mu       sync.Mutex
	lists    []types.List
	stages   []types.PipelineStage
	contacts []types.Contact
	agentID  string
	failList error
	created  []types.ContactInput
}

func (f *fakeBackend) ListLists(context.Context) ([]types.List, error) {
	return f.lists, f.failList
}

func (f *fakeBackend) ListStages(context.Context) ([]types.PipelineStage, error) {
	return f.stages, nil
}

func (f *fakeBackend) FindDuplicate(_ context.Context, listID, email, phone string) (types.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.contacts {
		if c.ListID == listID && (c.Email == email || (phone != "" && c.Phone == phone)) {
			return c, nil
		}
	}

	return types.Contact{}, types.ErrNotFound
}

func (f *fakeBackend) UpdateContact(_ context.Context, contact types.Contact) (types.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.contacts {
		if c.ID == contact.ID {
			f.contacts[i] = contact
			return contact, nil
		}
	}

	return types.Contact{}, types.ErrNotFound
}

func (f *fakeBackend) CreateContact(_ context.Context, in types.ContactInput) (types.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	if in.AssignedAgentID == "" {
		in.AssignedAgentID = f.agentID
	}
	c := in.Contact()
	c.ID = uuid.NewString()
	f.contacts = append(f.contacts, c)

	return c, nil
}

type ingestRecorder struct {
	mu      sync.Mutex
	results map[string]int
}

func (r *ingestRecorder) RecordContactIngested(source, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[source+"/"+result]++
}

var (
	listA  = types.List{ID: uuid.NewString(), Name: "Inbound"}
	listB  = types.List{ID: uuid.NewString(), Name: "Events"}
	stage1 = types.PipelineStage{ID: uuid.NewString(), Name: "New", Order: 1}
	stage2 = types.PipelineStage{ID: uuid.NewString(), Name: "Qualified", Order: 2}
)

func newBackend() *fakeBackend {
	return &fakeBackend{
		lists:   []types.List{listA, listB},
		stages:  []types.PipelineStage{stage1, stage2},
		agentID: "agent-from-distribution",
	}
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhook/contacts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())

	return rec, resp
}

func TestHandler_Preflight(t *testing.T) {
	h := NewHandler(newBackend())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/webhook/contacts", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "authorization, x-client-info, apikey, content-type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(newBackend()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook/contacts", nil))

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, "POST, OPTIONS", rec.Header().Get("Allow"))
}

func TestHandler_CreatesIntoFirstListAndStage(t *testing.T) {
	backend := newBackend()
	metrics := &ingestRecorder{results: map[string]int{}}
	h := NewHandler(backend, WithMetrics(metrics), WithLogger(leadflowtest.NewTestLogger(t)))

	rec, resp := post(t, h, `{"name":"Ana","email":"ana@example.com","listId":"not-a-uuid","assignedAgentId":"bogus","tags":["t1"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.True(t, resp.Success)
	require.False(t, resp.Updated)
	require.NotEmpty(t, resp.ContactID)
	require.Equal(t, "Inbound", resp.Data.List)
	require.Equal(t, "New", resp.Data.Stage)
	require.NotNil(t, resp.Data.AssignedAgent)
	require.Equal(t, "agent-from-distribution", *resp.Data.AssignedAgent)

	require.Len(t, backend.created, 1)
	in := backend.created[0]
	require.Equal(t, listA.ID, in.ListID)
	require.Equal(t, stage1.ID, in.StageID)
	require.Empty(t, in.AssignedAgentID, "invalid agent id falls back to distribution")
	require.Equal(t, "Webhook", in.Source)
	require.Equal(t, []string{"t1"}, in.Tags)
	require.Equal(t, 1, metrics.results["webhook/created"])
}

func TestHandler_UnassignedContactHasNullAgent(t *testing.T) {
	backend := newBackend()
	backend.agentID = ""

	rec, resp := post(t, NewHandler(backend), `{"name":"Ana","email":"ana@example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Data.AssignedAgent)
	require.Contains(t, rec.Body.String(), `"assignedAgent":null`)
	require.Contains(t, rec.Body.String(), `"list":"Inbound"`)
	require.Contains(t, rec.Body.String(), `"stage":"New"`)
}

func TestHandler_ExplicitTargets(t *testing.T) {
	backend := newBackend()
	agent := uuid.NewString()
	h := NewHandler(backend)

	body := `{"name":"Bia","email":"bia@example.com","listId":"` + listB.ID + `","stageId":"` + stage2.ID +
		`","assignedAgentId":"` + agent + `","source":"Landing page"}`
	rec, resp := post(t, h, body)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Events", resp.Data.List)
	require.Equal(t, "Qualified", resp.Data.Stage)
	require.Equal(t, agent, *resp.Data.AssignedAgent)
	require.Equal(t, "Landing page", backend.created[0].Source)
}

func TestHandler_UnknownStageIsRejected(t *testing.T) {
	h := NewHandler(newBackend())

	for _, stageID := range []string{uuid.NewString(), "garbage"} {
		rec, resp := post(t, h, `{"name":"Caio","email":"caio@example.com","stageId":"`+stageID+`"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.False(t, resp.Success)
		require.Equal(t, "no stage found", resp.Error)
	}
}

func TestHandler_DuplicateIsUpdated(t *testing.T) {
	backend := newBackend()
	existing := types.Contact{
		ID: "c-1", Name: "Old", Email: "dani@example.com", Phone: "555",
		ListID: listA.ID, StageID: stage2.ID, AssignedAgentID: "agent-x", Tags: []string{"vip"},
	}
	backend.contacts = []types.Contact{existing}
	metrics := &ingestRecorder{results: map[string]int{}}
	h := NewHandler(backend, WithMetrics(metrics))

	// Same phone, different email, stage that does not exist: update still succeeds.
	rec, resp := post(t, h, `{"name":"Dani","email":"dani@new.com","phone":"555","stageId":"`+uuid.NewString()+`","notes":"again"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)
	require.True(t, resp.Updated)
	require.Equal(t, "c-1", resp.ContactID)
	require.Equal(t, "Dani", resp.Data.Name)
	require.Equal(t, "dani@new.com", resp.Data.Email)
	require.Empty(t, resp.Data.List)
	require.NotContains(t, rec.Body.String(), `"list"`)
	require.NotContains(t, rec.Body.String(), `"assignedAgent"`)

	stored := backend.contacts[0]
	require.Equal(t, "again", stored.Notes)
	require.Equal(t, "Webhook", stored.Source)
	require.Equal(t, stage2.ID, stored.StageID)
	require.Equal(t, "agent-x", stored.AssignedAgentID)
	require.Equal(t, []string{"vip"}, stored.Tags)
	require.Empty(t, backend.created)
	require.Equal(t, 1, metrics.results["webhook/updated"])
}

func TestHandler_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		backend func() *fakeBackend
		body    string
		want    string
	}{
		{"missing name", newBackend, `{"email":"x@example.com"}`, "name and email are required"},
		{"blank email", newBackend, `{"name":"X","email":"  "}`, "name and email are required"},
		{"no lists", func() *fakeBackend { b := newBackend(); b.lists = nil; return b }, `{"name":"X","email":"x@example.com"}`, "no list found"},
		{"no stages", func() *fakeBackend { b := newBackend(); b.stages = nil; return b }, `{"name":"X","email":"x@example.com"}`, "no stage found"},
		{"bad json", newBackend, `{"name":`, "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &ingestRecorder{results: map[string]int{}}
			rec, resp := post(t, NewHandler(tt.backend(), WithMetrics(metrics)), tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.False(t, resp.Success)
			require.Equal(t, tt.want, resp.Error)
			require.Equal(t, 1, metrics.results["webhook/rejected"])
		})
	}
}

func TestHandler_BackendError(t *testing.T) {
	backend := newBackend()
	backend.failList = errors.New("nats: timeout")
	metrics := &ingestRecorder{results: map[string]int{}}

	rec, resp := post(t, NewHandler(backend, WithMetrics(metrics)), `{"name":"X","email":"x@example.com"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.False(t, resp.Success)
	require.Equal(t, "internal server error", resp.Error)
	require.Contains(t, resp.Details, "nats: timeout")
	require.Equal(t, 1, metrics.results["webhook/error"])
}

func TestCleanUUID(t *testing.T) {
	id := uuid.NewString()
	require.Equal(t, id, cleanUUID(id))
	require.Equal(t, id, cleanUUID(" "+id+" "))
	require.Empty(t, cleanUUID(""))
	require.Empty(t, cleanUUID("123"))
	require.Empty(t, cleanUUID("urn:uuid:"+id))
	require.Empty(t, cleanUUID("zzzzzzzz-zzzz-zzzz-zzzz-zzzzzzzzzzzz"))
}
