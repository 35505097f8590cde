package domain

import (
	"time"

	"github.com/diagnosis/rsvp-events/internal/utils"
)

type Response string

const (
	ResponseAttending Response = "attending"
	ResponseDeclined  Response = "declined"
)

func ParseResponse(s string) (Response, bool) {
	switch Response(s) {
	case ResponseAttending, ResponseDeclined:
		return Response(s), true
	default:
		return "", false
	}
}

const DefaultNumberOfGuests = 1

type Guest struct {
	ID                   string    `json:"id"`
	EventID              string    `json:"eventId"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	Response             Response  `json:"response"`
	NumberOfGuests       int       `json:"numberOfGuests"`
	AdditionalGuestNames []string  `json:"additionalGuestNames"`
	DietaryRestrictions  *string   `json:"dietaryRestrictions,omitempty"`
	Message              *string   `json:"message,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

func (g *Guest) IsAttending() bool {
	return g.Response == ResponseAttending
}

// Headcount is what this guest contributes to the event's guest count.
// Declined guests count for nothing even if NumberOfGuests holds a stale value.
func (g *Guest) Headcount() int {
	if g == nil || !g.IsAttending() {
		return 0
	}
	if g.NumberOfGuests < 1 {
		return DefaultNumberOfGuests
	}
	return g.NumberOfGuests
}

// GuestCountDelta is the change to an event's guest count when prev is
// replaced by next. A nil prev is a first RSVP; a nil next is a deletion.
//
//	declined  -> attending: +new
//	attending -> declined:  -old
//	attending -> attending: +(new-old)
//	declined  -> declined:  0
func GuestCountDelta(prev, next *Guest) int {
	return next.Headcount() - prev.Headcount()
}

// RSVPRequest is a guest's submission for one event.
type RSVPRequest struct {
	Name                 string   `json:"name" validate:"required,fullname"`
	Email                string   `json:"email" validate:"required,email"`
	Response             Response `json:"response" validate:"required,oneof=attending declined"`
	NumberOfGuests       *int     `json:"numberOfGuests" validate:"omitempty,min=1,max=100"`
	AdditionalGuestNames []string `json:"additionalGuestNames"`
	DietaryRestrictions  *string  `json:"dietaryRestrictions"`
	Message              *string  `json:"message"`
}

func (r *RSVPRequest) Normalize() {
	r.Name = utils.NormalizeString(r.Name)
	r.Email = utils.NormalizeEmail(r.Email)
	r.DietaryRestrictions = utils.NormalizeOptional(r.DietaryRestrictions)
	r.Message = utils.NormalizeOptional(r.Message)
}

func (r *RSVPRequest) Guests() int {
	if r.NumberOfGuests == nil {
		return DefaultNumberOfGuests
	}
	return *r.NumberOfGuests
}

// Validate normalizes the submission and checks it. Additional guest names
// are only required when attending with company; extra names beyond
// numberOfGuests-1 are accepted and kept.
func (r *RSVPRequest) Validate() error {
	r.Normalize()
	if err := validateStruct(r); err != nil {
		return err
	}

	if r.Response != ResponseAttending || r.Guests() <= 1 {
		return nil
	}

	need := r.Guests() - 1
	if len(r.AdditionalGuestNames) < need {
		return NewValidationError("additionalGuestNames",
			"additionalGuestNames must list %d name(s) for %d guests", need, r.Guests())
	}
	for i, name := range r.AdditionalGuestNames {
		if !utils.HasFullName(name) {
			return NewValidationError("additionalGuestNames",
				"additionalGuestNames[%d] must include a first and last name", i)
		}
	}
	return nil
}

// ToGuest builds the record this submission produces. For an existing guest
// the id and createdAt are kept and every other field is overwritten.
func (r *RSVPRequest) ToGuest(eventID string, existing *Guest, now time.Time) *Guest {
	names := r.AdditionalGuestNames
	if names == nil {
		names = []string{}
	}

	g := &Guest{
		EventID:              eventID,
		Name:                 r.Name,
		Email:                r.Email,
		Response:             r.Response,
		NumberOfGuests:       r.Guests(),
		AdditionalGuestNames: names,
		DietaryRestrictions:  r.DietaryRestrictions,
		Message:              r.Message,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if existing != nil {
		g.ID = existing.ID
		g.CreatedAt = existing.CreatedAt
	}
	return g
}
