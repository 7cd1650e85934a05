package model

import "time"

// SlotLock is the persisted form of a slot lock for store-backed lockers.
type SlotLock struct {
	Key       string    `json:"key" bson:"_id" gorm:"column:lock_key;primaryKey;type:varchar(160)"`
	Holder    string    `json:"holder" bson:"holder" gorm:"type:varchar(64);not null"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func (SlotLock) TableName() string {
	return "slot_locks"
}

func (l *SlotLock) IsExpired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
