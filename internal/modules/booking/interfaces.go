package booking

import (
	"context"

	"barberbook/internal/domain"
)

// BookingRepository is the durable side of the store.
type BookingRepository interface {
	Create(ctx context.Context, b *domain.Booking) error
	Update(ctx context.Context, b *domain.Booking) error
	ListActive(ctx context.Context) ([]*domain.Booking, error)
}

type CustomerRepository interface {
	Upsert(ctx context.Context, c domain.Customer) error
	List(ctx context.Context) ([]domain.Customer, error)
}

type BlockedSlotRepository interface {
	Add(ctx context.Context, key domain.SlotKey) error
	Remove(ctx context.Context, key domain.SlotKey) error
	List(ctx context.Context) ([]domain.SlotKey, error)
}
