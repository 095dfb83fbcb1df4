package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Timestamps are managed by gorm; deleted rows stay in the table.
type Timestamps struct {
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BaseModel is for rows addressed by an auto-increment id: users, tests, questions.
// swagger:model
type BaseModel struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamps
}

// UUIDBase is for records whose id is known before the insert, so uploads can be
// keyed by it. Submissions and certifications expose it as _id.
// swagger:model
type UUIDBase struct {
	ID string `gorm:"primaryKey;type:varchar(36)" json:"_id"`
	Timestamps
}

func (b *UUIDBase) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = NewRecordID()
	}
	return nil
}

func NewRecordID() string {
	return uuid.NewString()
}
