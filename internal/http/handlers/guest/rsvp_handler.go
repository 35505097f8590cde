// Package guest serves the routes of an event that need no credential.
package guest

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/diagnosis/rsvp-events/internal/domain"
	"github.com/diagnosis/rsvp-events/internal/http/response"
	"github.com/diagnosis/rsvp-events/internal/service"
)

const (
	defaultQRSize = 256
	minQRSize     = 128
	maxQRSize     = 1024
)

type RSVPHandler struct {
	Events  service.EventService
	RSVPs   service.RSVPService
	BaseURL string
}

func NewRSVPHandler(events service.EventService, rsvps service.RSVPService, baseURL string) *RSVPHandler {
	return &RSVPHandler{Events: events, RSVPs: rsvps, BaseURL: baseURL}
}

// Submit records a guest's RSVP: 201 for a first response, 200 when the
// same e-mail answers again.
func (h *RSVPHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var in domain.RSVPRequest
	if !response.DecodeJSON(w, r, &in) {
		return
	}
	res, err := h.RSVPs.Submit(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	response.WriteJSON(w, status, res.Guest)
}

func (h *RSVPHandler) Public(w http.ResponseWriter, r *http.Request) {
	ev, err := h.Events.Public(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, ev)
}

// QR renders the event's public RSVP link as a PNG.
func (h *RSVPHandler) QR(w http.ResponseWriter, r *http.Request) {
	size := defaultQRSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.BadRequest(w, "size must be an integer")
			return
		}
		size = min(max(n, minQRSize), maxQRSize)
	}

	ev, err := h.Events.Public(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	png, err := qrcode.Encode(RSVPURL(h.BaseURL, ev.ID), qrcode.Medium, size)
	if err != nil {
		response.FromError(w, r, fmt.Errorf("encode qr: %w", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// RSVPURL is the front-end page guests open to respond.
func RSVPURL(baseURL, eventID string) string {
	return fmt.Sprintf("%s/rsvp/%s", baseURL, eventID)
}
