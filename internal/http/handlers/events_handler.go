package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/rsvp-events/internal/domain"
	"github.com/diagnosis/rsvp-events/internal/http/middleware"
	"github.com/diagnosis/rsvp-events/internal/http/response"
	"github.com/diagnosis/rsvp-events/internal/repo"
	"github.com/diagnosis/rsvp-events/internal/service"
	"github.com/diagnosis/rsvp-events/internal/utils"
	"github.com/diagnosis/rsvp-events/pkg/logger"
)

// EventsHandler serves the host side of /events: event CRUD and the guest list.
type EventsHandler struct {
	Events service.EventService
	RSVPs  service.RSVPService
}

func NewEventsHandler(events service.EventService, rsvps service.RSVPService) *EventsHandler {
	return &EventsHandler{Events: events, RSVPs: rsvps}
}

type eventListResponse struct {
	Events []*domain.Event `json:"events"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in domain.EventInput
	if !response.DecodeJSON(w, r, &in) {
		return
	}
	e, err := h.Events.Create(r.Context(), middleware.UserID(r), &in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, e)
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := response.Pagination(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	list, err := h.Events.List(r.Context(), middleware.UserID(r), limit, offset)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	if list == nil {
		list = []*domain.Event{}
	}
	limit, offset = repo.ClampPage(limit, offset)
	response.WriteJSON(w, http.StatusOK, eventListResponse{Events: list, Limit: limit, Offset: offset})
}

// Get answers with the full event for token holders and the owner, and with
// the public projection for everyone else.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.Events.Get(r.Context(), chi.URLParam(r, "id"), middleware.Credential(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	if view.Event != nil {
		response.WriteJSON(w, http.StatusOK, view.Event)
		return
	}
	response.WriteJSON(w, http.StatusOK, view.Public)
}

func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in domain.EventInput
	if !response.DecodeJSON(w, r, &in) {
		return
	}
	e, err := h.Events.Update(r.Context(), chi.URLParam(r, "id"), middleware.Credential(r), &in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, e)
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Events.Delete(r.Context(), chi.URLParam(r, "id"), middleware.Credential(r)); err != nil {
		response.FromError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventsHandler) RotateTokens(w http.ResponseWriter, r *http.Request) {
	e, err := h.Events.RotateTokens(r.Context(), chi.URLParam(r, "id"), middleware.Credential(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, e)
}

func (h *EventsHandler) ListGuests(w http.ResponseWriter, r *http.Request) {
	list, err := h.RSVPs.ListGuests(r.Context(), chi.URLParam(r, "id"), middleware.Credential(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, list)
}

var exportHeader = []string{
	"name", "email", "response", "numberOfGuests", "additionalGuestNames",
	"dietaryRestrictions", "message", "createdAt", "updatedAt",
}

// ExportGuests streams the guest list as CSV.
func (h *EventsHandler) ExportGuests(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	list, err := h.RSVPs.ListGuests(r.Context(), id, middleware.Credential(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="guests-%s.csv"`, id))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(exportHeader)
	for _, g := range list.Guests {
		_ = cw.Write([]string{
			csvText(g.Name),
			csvText(g.Email),
			string(g.Response),
			strconv.Itoa(g.NumberOfGuests),
			csvText(strings.Join(g.AdditionalGuestNames, "; ")),
			csvText(utils.StringValue(g.DietaryRestrictions)),
			csvText(utils.StringValue(g.Message)),
			g.CreatedAt.UTC().Format(time.RFC3339),
			g.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logger.ErrorContext(r.Context(), "Failed to write guest export", "error", err, "event_id", id)
	}
}

// csvText keeps guest-supplied text from being read as a spreadsheet formula.
func csvText(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

func (h *EventsHandler) DeleteGuest(w http.ResponseWriter, r *http.Request) {
	err := h.RSVPs.DeleteGuest(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "guestId"), middleware.Credential(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
