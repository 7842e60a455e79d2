package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	apperrors "proof-engine/internal/common/errors"
	"proof-engine/internal/common/validation"
	"proof-engine/internal/engine/admission"
	"proof-engine/internal/models"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 64 << 10

type admissionBody struct {
	Session    *models.SessionState `json:"session"`
	PageViewID string               `json:"pageViewId"`
	Page       models.PageContext   `json:"page"`
}

type displayBody struct {
	Session    *models.SessionState `json:"session"`
	PageViewID string               `json:"pageViewId"`
	EventID    string               `json:"eventId"`
	CampaignID string               `json:"campaignId"`
	PlaylistID string               `json:"playlistId"`
}

type displayResponse struct {
	Session *models.SessionState `json:"session"`
}

func (s *Server) admit(w http.ResponseWriter, r *http.Request) {
	var body admissionBody
	if !s.decode(w, r, validation.AdmissionRequest(), &body) {
		return
	}
	sel, err := s.admitter.Admit(r.Context(), admission.Request{
		WidgetID:   chi.URLParam(r, "widgetID"),
		SessionID:  body.Session.SessionID,
		PageViewID: body.PageViewID,
		Session:    body.Session,
		Page:       body.Page,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sel)
}

func (s *Server) confirm(w http.ResponseWriter, r *http.Request) {
	var body displayBody
	if !s.decode(w, r, validation.DisplayRequest(), &body) {
		return
	}
	state, err := s.admitter.Confirm(r.Context(), admission.ConfirmRequest{
		WidgetID:   chi.URLParam(r, "widgetID"),
		SessionID:  body.Session.SessionID,
		PageViewID: body.PageViewID,
		Session:    body.Session,
		EventID:    body.EventID,
		CampaignID: body.CampaignID,
		PlaylistID: body.PlaylistID,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, displayResponse{Session: state})
}

func (s *Server) click(w http.ResponseWriter, r *http.Request) {
	if err := s.admitter.RecordClick(r.Context(), chi.URLParam(r, "eventID")); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) graduationStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.graduator.Status(r.Context(), chi.URLParam(r, "widgetID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) graduate(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.graduator.AutoGraduate(r.Context(), chi.URLParam(r, "widgetID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	results := make(map[string]string, len(s.checks))
	code := http.StatusOK
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	respondJSON(w, code, results)
}

// decode reads and validates a JSON body. It writes the error response
// itself and reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema *validation.Schema, out interface{}) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.respondError(w, apperrors.NewInvalidInputError("request body: "+err.Error()))
		return false
	}
	if result := schema.ValidateBytes(raw); !result.Valid {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":            apperrors.NewInvalidInputError("request does not match schema"),
			"validationErrors": result.Errors,
		})
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.respondError(w, apperrors.NewInvalidInputError(err.Error()))
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	stdErr := apperrors.Normalize(err)
	status := statusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
	}
	respondJSON(w, status, map[string]interface{}{"error": stdErr})
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeWidgetNotFound, apperrors.ErrCodeEventNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeVersionConflict, apperrors.ErrCodeLockNotAcquired:
		return http.StatusConflict
	case apperrors.ErrCodePoolFetchFailed, apperrors.ErrCodeAnalyticsUnavailable, apperrors.ErrCodeStorageReadFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
