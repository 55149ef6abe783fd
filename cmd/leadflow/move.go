package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/arloliu/leadflow"
)

// stageMover is the part of the service driven by the move routes.
type stageMover interface {
	GetContact(ctx context.Context, id string) (leadflow.Contact, error)
	GetStage(ctx context.Context, id string) (leadflow.PipelineStage, error)
	MoveContact(contactID, toStageID, fromStageID string) bool
	RetryFailedMove(contactID string) bool
	CancelMove(contactID string) bool
	MovementSnapshot(contactID string) (leadflow.MovementState, bool)
}

type moveRequest struct {
	StageID string `json:"stageId"`
}

type moveResponse struct {
	ContactID   string `json:"contactId"`
	Phase       string `json:"phase,omitempty"`
	FromStageID string `json:"fromStageId,omitempty"`
	ToStageID   string `json:"toStageId,omitempty"`
	Attempt     int    `json:"attempt"`
	Error       string `json:"error,omitempty"`
}

// registerMoveRoutes mounts the stage move endpoints:
//
//	POST   /contacts/{id}/move        start a move, body {"stageId": "..."}
//	GET    /contacts/{id}/move        current movement state
//	DELETE /contacts/{id}/move        cancel and revert
//	POST   /contacts/{id}/move/retry  retry a failed move
func registerMoveRoutes(mux *http.ServeMux, svc stageMover) {
	mux.HandleFunc("POST /contacts/{id}/move", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		var req moveRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeMove(w, http.StatusBadRequest, moveResponse{ContactID: id, Error: "invalid JSON body"})
			return
		}
		req.StageID = strings.TrimSpace(req.StageID)
		if req.StageID == "" {
			writeMove(w, http.StatusBadRequest, moveResponse{ContactID: id, Error: "stageId is required"})
			return
		}

		contact, err := svc.GetContact(r.Context(), id)
		if err != nil {
			writeLookupError(w, id, "contact", err)
			return
		}
		if _, err := svc.GetStage(r.Context(), req.StageID); err != nil {
			writeLookupError(w, id, "stage", err)
			return
		}
		if contact.StageID == req.StageID {
			writeMove(w, http.StatusBadRequest, moveResponse{ContactID: id, Error: "contact is already in this stage"})
			return
		}

		if !svc.MoveContact(id, req.StageID, contact.StageID) {
			writeMove(w, http.StatusConflict, moveResponse{ContactID: id, Error: "contact already has a tracked move"})
			return
		}
		logger.Info("stage move requested", "contact_id", id, "from_stage_id", contact.StageID, "to_stage_id", req.StageID)
		writeState(w, http.StatusAccepted, svc, id)
	})

	mux.HandleFunc("GET /contacts/{id}/move", func(w http.ResponseWriter, r *http.Request) {
		writeState(w, http.StatusOK, svc, r.PathValue("id"))
	})

	mux.HandleFunc("DELETE /contacts/{id}/move", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !svc.CancelMove(id) {
			writeMove(w, http.StatusNotFound, moveResponse{ContactID: id, Error: "no tracked move"})
			return
		}
		writeState(w, http.StatusOK, svc, id)
	})

	mux.HandleFunc("POST /contacts/{id}/move/retry", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !svc.RetryFailedMove(id) {
			writeMove(w, http.StatusConflict, moveResponse{ContactID: id, Error: "no failed move to retry"})
			return
		}
		writeState(w, http.StatusAccepted, svc, id)
	})
}

func writeLookupError(w http.ResponseWriter, id, what string, err error) {
	if errors.Is(err, leadflow.ErrNotFound) {
		writeMove(w, http.StatusNotFound, moveResponse{ContactID: id, Error: what + " not found"})
		return
	}
	logger.Error("move lookup failed", "contact_id", id, "lookup", what, "error", err)
	writeMove(w, http.StatusInternalServerError, moveResponse{ContactID: id, Error: "internal server error"})
}

func writeState(w http.ResponseWriter, status int, svc stageMover, id string) {
	state, _ := svc.MovementSnapshot(id)
	writeMove(w, status, moveResponse{
		ContactID:   id,
		Phase:       state.Phase.String(),
		FromStageID: state.FromStageID,
		ToStageID:   state.ToStageID,
		Attempt:     state.Attempt,
	})
}

func writeMove(w http.ResponseWriter, status int, resp moveResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Debug("failed to write move response", "error", err)
	}
}
