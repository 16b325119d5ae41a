package repository

import (
	"context"

	"barberbook/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

type customerModel struct {
	UserID int64  `gorm:"column:user_id;primaryKey"`
	Name   string `gorm:"column:name"`
	Phone  string `gorm:"column:phone"`
	Lang   string `gorm:"column:lang;default:ru"`
}

func (customerModel) TableName() string { return "customers" }

func (r *CustomerRepository) Upsert(ctx context.Context, c domain.Customer) error {
	m := customerModel{UserID: c.UserID, Name: c.Name, Phone: c.Phone, Lang: c.Lang}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, UpdateAll: true}).
		Create(&m).Error
}

func (r *CustomerRepository) List(ctx context.Context) ([]domain.Customer, error) {
	var models []customerModel
	if tx := r.db.WithContext(ctx).Find(&models); tx.Error != nil {
		return nil, tx.Error
	}
	out := make([]domain.Customer, 0, len(models))
	for _, m := range models {
		out = append(out, domain.Customer{UserID: m.UserID, Name: m.Name, Phone: m.Phone, Lang: m.Lang})
	}
	return out, nil
}
