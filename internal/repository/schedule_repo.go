package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"barberbook/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ScheduleConfigRepository struct {
	db *gorm.DB
}

func NewScheduleConfigRepository(db *gorm.DB) *ScheduleConfigRepository {
	return &ScheduleConfigRepository{db: db}
}

type scheduleConfigModel struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	StartHour int    `gorm:"column:start_hour"`
	EndHour   int    `gorm:"column:end_hour"`
	WorkDays  string `gorm:"column:work_days"` // CSV of time.Weekday values
}

func (scheduleConfigModel) TableName() string { return "schedule_config" }

func (r *ScheduleConfigRepository) Load(ctx context.Context) (domain.ScheduleConfig, bool, error) {
	var m scheduleConfigModel
	tx := r.db.WithContext(ctx).First(&m, 1)
	if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return domain.ScheduleConfig{}, false, nil
	}
	if tx.Error != nil {
		return domain.ScheduleConfig{}, false, tx.Error
	}
	cfg := domain.ScheduleConfig{StartHour: m.StartHour, EndHour: m.EndHour}
	for _, part := range strings.Split(m.WorkDays, ",") {
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return domain.ScheduleConfig{}, false, err
		}
		cfg.WorkDays = append(cfg.WorkDays, time.Weekday(d))
	}
	return cfg, true, nil
}

func (r *ScheduleConfigRepository) Save(ctx context.Context, cfg domain.ScheduleConfig) error {
	days := make([]string, 0, len(cfg.WorkDays))
	for _, d := range cfg.WorkDays {
		days = append(days, strconv.Itoa(int(d)))
	}
	m := scheduleConfigModel{
		ID:        1,
		StartHour: cfg.StartHour,
		EndHour:   cfg.EndHour,
		WorkDays:  strings.Join(days, ","),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(&m).Error
}
