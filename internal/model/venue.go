package model

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type VenueStatus string

const (
	VenueStatusActive   VenueStatus = "active"
	VenueStatusInactive VenueStatus = "inactive"
)

type Venue struct {
	Base
	Name             string         `json:"name" db:"name"`
	Description      string         `json:"description" db:"description"`
	Address          string         `json:"address" db:"address"`
	Category         string         `json:"category" db:"category"`
	Tags             pq.StringArray `json:"tags" db:"tags"`
	CapacitySeated   int            `json:"capacity_seated" db:"capacity_seated"`
	CapacityStanding int            `json:"capacity_standing" db:"capacity_standing"`
	ContactEmail     string         `json:"contact_email" db:"contact_email"`
	Status           VenueStatus    `json:"status" db:"status"`

	// Priority orders venues within their tier, lower first. A venue with a
	// homepage slot always ranks before any venue without one, regardless of
	// priority.
	Priority     *int `json:"priority,omitempty" db:"priority"`
	HomepageSlot *int `json:"homepage_slot,omitempty" db:"homepage_slot"`
}

// VenueFilter is the filter predicate shared by the listing page query and
// its total count.
type VenueFilter struct {
	Query    string `json:"query" form:"q"`
	Category string `json:"category" form:"category"`
	District string `json:"district" form:"district"`

	// Capacity bounds derived from a bucket token; a venue matches when
	// either capacity figure falls inside the bounds.
	CapacityMin *int `json:"capacity_min,omitempty"`
	CapacityMax *int `json:"capacity_max,omitempty"`

	// MinCapacity is the candidate-matching predicate: either capacity
	// figure at least this large.
	MinCapacity *int `json:"min_capacity,omitempty"`
}

// VenuePage is one window of the rotated listing order.
type VenuePage struct {
	Items   []*Venue `json:"items"`
	Total   int      `json:"total"`
	HasMore bool     `json:"has_more"`
}

// VenueRef is the candidate matcher's view of a venue.
type VenueRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
