package repository

import (
	"context"
	"time"

	"barberbook/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TimerRepository struct {
	db *gorm.DB
}

func NewTimerRepository(db *gorm.DB) *TimerRepository {
	return &TimerRepository{db: db}
}

type timerModel struct {
	Name      string    `gorm:"column:name;primaryKey"`
	Category  string    `gorm:"column:category"`
	FireAt    time.Time `gorm:"column:fire_at"`
	BookingID int64     `gorm:"column:booking_id;index"`
}

func (timerModel) TableName() string { return "timer_records" }

// Save upserts by job name, so re-arming replaces the durable record instead
// of duplicating it.
func (r *TimerRepository) Save(ctx context.Context, rec domain.TimerRecord) error {
	m := timerModel{
		Name:      rec.Name,
		Category:  string(rec.Category),
		FireAt:    rec.FireAt,
		BookingID: rec.BookingID,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, UpdateAll: true}).
		Create(&m).Error
}

func (r *TimerRepository) Delete(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Where("name = ?", name).Delete(&timerModel{}).Error
}

func (r *TimerRepository) List(ctx context.Context) ([]domain.TimerRecord, error) {
	var models []timerModel
	if tx := r.db.WithContext(ctx).Order("fire_at").Find(&models); tx.Error != nil {
		return nil, tx.Error
	}
	out := make([]domain.TimerRecord, 0, len(models))
	for _, m := range models {
		out = append(out, domain.TimerRecord{
			Name:      m.Name,
			Category:  domain.TimerCategory(m.Category),
			FireAt:    m.FireAt,
			BookingID: m.BookingID,
		})
	}
	return out, nil
}
