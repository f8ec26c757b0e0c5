package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StewardEvent is the durable log of Buy, PriceChange and Foreclosure.
type StewardEvent struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Seq        int64          `gorm:"column:seq;not null;index" json:"seq"`
	Type       string         `gorm:"column:type;type:varchar(40);not null;index" json:"type"`
	Payload    datatypes.JSON `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	OccurredAt int64          `gorm:"column:occurred_at;not null" json:"occurred_at"`
	CreatedAt  time.Time      `gorm:"column:createdAt" json:"createdAt"`
}

func (StewardEvent) TableName() string {
	return "StewardEvents"
}

func (e *StewardEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
