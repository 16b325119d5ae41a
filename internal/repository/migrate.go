package repository

import "gorm.io/gorm"

// Migrate creates the persisted layout. The partial unique index is the
// durable guard for slot exclusivity: only active bookings participate, so
// cancelled and rejected rows keep their slot keys without conflicting.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&bookingModel{},
		&timerModel{},
		&customerModel{},
		&scheduleConfigModel{},
		&blockedSlotModel{},
	); err != nil {
		return err
	}
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_active_slot
		 ON bookings (slot_key) WHERE status IN ('pending', 'confirmed')`,
	).Error
}
