package repository

import (
	"context"

	"barberbook/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BlockedSlotRepository struct {
	db *gorm.DB
}

func NewBlockedSlotRepository(db *gorm.DB) *BlockedSlotRepository {
	return &BlockedSlotRepository{db: db}
}

type blockedSlotModel struct {
	SlotKey string `gorm:"column:slot_key;primaryKey"`
}

func (blockedSlotModel) TableName() string { return "blocked_slots" }

func (r *BlockedSlotRepository) Add(ctx context.Context, key domain.SlotKey) error {
	m := blockedSlotModel{SlotKey: key.String()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&m).Error
}

func (r *BlockedSlotRepository) Remove(ctx context.Context, key domain.SlotKey) error {
	return r.db.WithContext(ctx).Where("slot_key = ?", key.String()).Delete(&blockedSlotModel{}).Error
}

func (r *BlockedSlotRepository) List(ctx context.Context) ([]domain.SlotKey, error) {
	var models []blockedSlotModel
	if tx := r.db.WithContext(ctx).Order("slot_key").Find(&models); tx.Error != nil {
		return nil, tx.Error
	}
	out := make([]domain.SlotKey, 0, len(models))
	for _, m := range models {
		k, err := domain.ParseSlotKey(m.SlotKey)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}
