package domain

import (
	"time"

	"github.com/diagnosis/rsvp-events/internal/utils"
)

type Event struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"ownerId"`
	Name         string     `json:"name"`
	Date         time.Time  `json:"date"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	Location     string     `json:"location"`
	Venue        *string    `json:"venue,omitempty"`
	Description  *string    `json:"description,omitempty"`
	ImageURL     *string    `json:"imageUrl,omitempty"`
	DressCode    *string    `json:"dressCode,omitempty"`
	Instructions *string    `json:"instructions,omitempty"`
	HostName     *string    `json:"hostName,omitempty"`
	HostEmail    *string    `json:"hostEmail,omitempty"`
	AdminToken   string     `json:"adminToken,omitempty"`
	AccessToken  string     `json:"accessToken,omitempty"`
	GuestCount   int        `json:"guestCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// EventInput is the body of create and update requests. Update replaces
// every editable field, so both use the same rules.
type EventInput struct {
	Name         string     `json:"name" validate:"required"`
	Date         *time.Time `json:"date" validate:"required"`
	EndDate      *time.Time `json:"endDate"`
	Location     string     `json:"location" validate:"required"`
	Venue        *string    `json:"venue"`
	Description  *string    `json:"description"`
	ImageURL     *string    `json:"imageUrl" validate:"omitempty,url"`
	DressCode    *string    `json:"dressCode"`
	Instructions *string    `json:"instructions"`
	HostName     *string    `json:"hostName"`
	HostEmail    *string    `json:"hostEmail" validate:"omitempty,email"`
}

func (in *EventInput) Normalize() {
	in.Name = utils.NormalizeString(in.Name)
	in.Location = utils.NormalizeString(in.Location)
	in.Venue = utils.NormalizeOptional(in.Venue)
	in.Description = utils.NormalizeOptional(in.Description)
	in.ImageURL = utils.NormalizeOptional(in.ImageURL)
	in.DressCode = utils.NormalizeOptional(in.DressCode)
	in.Instructions = utils.NormalizeOptional(in.Instructions)
	in.HostName = utils.NormalizeOptional(in.HostName)
	in.HostEmail = utils.NormalizeOptional(in.HostEmail)
	if in.HostEmail != nil {
		email := utils.NormalizeEmail(*in.HostEmail)
		in.HostEmail = &email
	}
}

// Validate normalizes the input and checks it.
func (in *EventInput) Validate() error {
	in.Normalize()
	if err := validateStruct(in); err != nil {
		return err
	}
	if in.EndDate != nil && in.EndDate.Before(*in.Date) {
		return NewValidationError("endDate", "endDate must not be before date")
	}
	return nil
}

// Apply copies the editable fields onto e.
func (in *EventInput) Apply(e *Event) {
	e.Name = in.Name
	e.Date = *in.Date
	e.EndDate = in.EndDate
	e.Location = in.Location
	e.Venue = in.Venue
	e.Description = in.Description
	e.ImageURL = in.ImageURL
	e.DressCode = in.DressCode
	e.Instructions = in.Instructions
	e.HostName = in.HostName
	e.HostEmail = in.HostEmail
}

// PublicEvent is what anyone holding the event link may see.
type PublicEvent struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Date         time.Time  `json:"date"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	Location     string     `json:"location"`
	Venue        *string    `json:"venue,omitempty"`
	Description  *string    `json:"description,omitempty"`
	HostName     *string    `json:"hostName,omitempty"`
	ImageURL     *string    `json:"imageUrl,omitempty"`
	DressCode    *string    `json:"dressCode,omitempty"`
	Instructions *string    `json:"instructions,omitempty"`
}

func (e *Event) Public() PublicEvent {
	return PublicEvent{
		ID:           e.ID,
		Name:         e.Name,
		Date:         e.Date,
		EndDate:      e.EndDate,
		Location:     e.Location,
		Venue:        e.Venue,
		Description:  e.Description,
		HostName:     e.HostName,
		ImageURL:     e.ImageURL,
		DressCode:    e.DressCode,
		Instructions: e.Instructions,
	}
}

// ViewFor returns a copy of e trimmed to what the given access level may see.
// Only owners and admin-token holders receive the tokens.
func (e *Event) ViewFor(access Access) *Event {
	view := *e
	if !access.CanAdmin() {
		view.AdminToken = ""
		view.AccessToken = ""
	}
	return &view
}
