package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"barberbook/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrDuplicateSlot is returned when the partial unique index on active slot
// keys rejects an insert, the durable backstop for two requests converging
// on one slot.
var ErrDuplicateSlot = errors.New("slot already taken")

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

type bookingModel struct {
	ID              int64      `gorm:"column:id;primaryKey"`
	UserID          int64      `gorm:"column:user_id;index"`
	Name            string     `gorm:"column:name"`
	Phone           string     `gorm:"column:phone"`
	Lang            string     `gorm:"column:lang"`
	SlotKey         string     `gorm:"column:slot_key;index"`
	SlotCount       int        `gorm:"column:slot_count"`
	DurationMins    int        `gorm:"column:duration_mins"`
	Services        string     `gorm:"column:services"`
	Status          string     `gorm:"column:status;index"`
	ApproverMsg     string     `gorm:"column:approver_msg"`
	RescheduledFrom string     `gorm:"column:rescheduled_from"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	DecidedAt       *time.Time `gorm:"column:decided_at"`
}

func (bookingModel) TableName() string { return "bookings" }

func toDomainBooking(m bookingModel) (*domain.Booking, error) {
	slot, err := domain.ParseSlotKey(m.SlotKey)
	if err != nil {
		return nil, err
	}
	var services []string
	if m.Services != "" {
		services = strings.Split(m.Services, ",")
	}
	return &domain.Booking{
		ID:              m.ID,
		UserID:          m.UserID,
		Name:            m.Name,
		Phone:           m.Phone,
		Lang:            m.Lang,
		Slot:            slot,
		SlotCount:       m.SlotCount,
		DurationMins:    m.DurationMins,
		Services:        services,
		Status:          domain.BookingStatus(m.Status),
		ApproverMsg:     m.ApproverMsg,
		RescheduledFrom: m.RescheduledFrom,
		CreatedAt:       m.CreatedAt,
		DecidedAt:       m.DecidedAt,
	}, nil
}

func toBookingModel(b *domain.Booking) bookingModel {
	return bookingModel{
		ID:              b.ID,
		UserID:          b.UserID,
		Name:            b.Name,
		Phone:           b.Phone,
		Lang:            b.Lang,
		SlotKey:         b.Slot.String(),
		SlotCount:       b.SlotCount,
		DurationMins:    b.DurationMins,
		Services:        strings.Join(b.Services, ","),
		Status:          string(b.Status),
		ApproverMsg:     b.ApproverMsg,
		RescheduledFrom: b.RescheduledFrom,
		CreatedAt:       b.CreatedAt,
		DecidedAt:       b.DecidedAt,
	}
}

func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	m := toBookingModel(b)
	if tx := r.db.WithContext(ctx).Create(&m); tx.Error != nil {
		return mapDuplicate(tx.Error)
	}
	b.ID = m.ID
	return nil
}

func (r *BookingRepository) Update(ctx context.Context, b *domain.Booking) error {
	m := toBookingModel(b)
	tx := r.db.WithContext(ctx).Model(&bookingModel{}).Where("id = ?", m.ID).
		Select("status", "approver_msg", "decided_at").
		Updates(map[string]any{
			"status":       m.Status,
			"approver_msg": m.ApproverMsg,
			"decided_at":   m.DecidedAt,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	var m bookingModel
	if tx := r.db.WithContext(ctx).First(&m, id); tx.Error != nil {
		return nil, tx.Error
	}
	return toDomainBooking(m)
}

// ListActive returns every Pending and Confirmed booking, for the startup
// projection load.
func (r *BookingRepository) ListActive(ctx context.Context) ([]*domain.Booking, error) {
	var models []bookingModel
	tx := r.db.WithContext(ctx).
		Where("status IN ?", []string{string(domain.BookingPending), string(domain.BookingConfirmed)}).
		Order("slot_key").
		Find(&models)
	if tx.Error != nil {
		return nil, tx.Error
	}
	out := make([]*domain.Booking, 0, len(models))
	for _, m := range models {
		b, err := toDomainBooking(m)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// mapDuplicate folds the two drivers' unique-violation shapes into
// ErrDuplicateSlot: pgconn's 23505 on postgres, the constraint message on
// sqlite.
func mapDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateSlot
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicateSlot
	}
	return err
}
