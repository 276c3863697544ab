package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pocketbase/dbx"

	"eventix/internal/status"
	"eventix/models"
)

// EventStore owns events and their ticket-type quantity pools. Seat counts
// only move through Reserve/Release so the non-negativity invariant holds.
type EventStore struct{}

func (EventStore) Create(ctx context.Context, db dbx.Builder, ev *models.Event) error {
	_, err := db.Insert("events", dbx.Params{
		"id":              ev.ID,
		"organizer_id":    ev.OrganizerID,
		"title":           ev.Title,
		"price":           ev.Price,
		"available_seats": ev.AvailableSeats,
		"created_at":      ev.CreatedAt,
	}).WithContext(ctx).Execute()
	return err
}

func (EventStore) Get(ctx context.Context, db dbx.Builder, id string) (*models.Event, error) {
	var ev models.Event
	err := db.Select("*").From("events").
		Where(dbx.HashExp{"id": id}).
		WithContext(ctx).
		One(&ev)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return &ev, nil
}

func (EventStore) CreateTicketType(ctx context.Context, db dbx.Builder, tt *models.TicketType) error {
	_, err := db.Insert("ticket_types", dbx.Params{
		"id":       tt.ID,
		"event_id": tt.EventID,
		"name":     tt.Name,
		"price":    tt.Price,
		"quantity": tt.Quantity,
	}).WithContext(ctx).Execute()
	return err
}

// GetTicketType returns the ticket type only if it belongs to eventID.
func (EventStore) GetTicketType(ctx context.Context, db dbx.Builder, id, eventID string) (*models.TicketType, error) {
	var tt models.TicketType
	err := db.Select("*").From("ticket_types").
		Where(dbx.HashExp{"id": id, "event_id": eventID}).
		WithContext(ctx).
		One(&tt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrInvalidTicketType
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket type %s: %w", id, err)
	}
	return &tt, nil
}

// ReserveSeats decrements the event's seat pool by qty. The decrement is
// guarded so two concurrent purchases can never drive the count below zero.
func (EventStore) ReserveSeats(ctx context.Context, db dbx.Builder, eventID string, qty int) error {
	res, err := db.NewQuery(
		`UPDATE events SET available_seats = available_seats - {:qty}
		 WHERE id = {:id} AND available_seats >= {:qty}`).
		Bind(dbx.Params{"id": eventID, "qty": qty}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("reserve seats: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return status.ErrInsufficientInventory
	}
	return nil
}

// ReleaseSeats credits qty seats back during compensation.
func (EventStore) ReleaseSeats(ctx context.Context, db dbx.Builder, eventID string, qty int) error {
	_, err := db.NewQuery(
		`UPDATE events SET available_seats = available_seats + {:qty} WHERE id = {:id}`).
		Bind(dbx.Params{"id": eventID, "qty": qty}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("release seats: %w", err)
	}
	return nil
}

// ReserveTicketUnits is ReserveSeats scoped to a ticket type pool.
func (EventStore) ReserveTicketUnits(ctx context.Context, db dbx.Builder, ticketTypeID string, qty int) error {
	res, err := db.NewQuery(
		`UPDATE ticket_types SET quantity = quantity - {:qty}
		 WHERE id = {:id} AND quantity >= {:qty}`).
		Bind(dbx.Params{"id": ticketTypeID, "qty": qty}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("reserve ticket units: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return status.ErrInsufficientInventory
	}
	return nil
}

func (EventStore) ReleaseTicketUnits(ctx context.Context, db dbx.Builder, ticketTypeID string, qty int) error {
	_, err := db.NewQuery(
		`UPDATE ticket_types SET quantity = quantity + {:qty} WHERE id = {:id}`).
		Bind(dbx.Params{"id": ticketTypeID, "qty": qty}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("release ticket units: %w", err)
	}
	return nil
}
