package models

import (
	"time"
)

type Event struct {
	ID             string    `db:"id" json:"id"`
	OrganizerID    string    `db:"organizer_id" json:"organizer_id"`
	Title          string    `db:"title" json:"title"`
	Price          int64     `db:"price" json:"price"`
	AvailableSeats int       `db:"available_seats" json:"available_seats"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// TicketType is an optional per-event price tier with its own quantity pool.
type TicketType struct {
	ID       string `db:"id" json:"id"`
	EventID  string `db:"event_id" json:"event_id"`
	Name     string `db:"name" json:"name"`
	Price    int64  `db:"price" json:"price"`
	Quantity int    `db:"quantity" json:"quantity"`
}
