package domain

import (
	"time"
)

// StewardRowID is the primary key of the single steward row.
const StewardRowID uint = 1

// Steward is the persisted engine state of the stewarded asset.
type Steward struct {
	ID                 uint      `gorm:"column:id;primaryKey" json:"id"`
	SelfAddress        string    `gorm:"column:self_address;type:varchar(42);not null" json:"self_address"`
	Price              Wei       `gorm:"column:price;type:varchar(80);not null" json:"price"`
	InitialPrice       Wei       `gorm:"column:initial_price;type:varchar(80);not null" json:"initial_price"`
	Deposit            Wei       `gorm:"column:deposit;type:varchar(80);not null" json:"deposit"`
	TimeLastCollected  int64     `gorm:"column:time_last_collected;not null;default:0" json:"time_last_collected"`
	TimeAcquired       int64     `gorm:"column:time_acquired;not null;default:0" json:"time_acquired"`
	CurrentCollected   Wei       `gorm:"column:current_collected;type:varchar(80);not null" json:"current_collected"`
	TotalCollected     Wei       `gorm:"column:total_collected;type:varchar(80);not null" json:"total_collected"`
	Patron             string    `gorm:"column:patron;type:varchar(42);not null" json:"patron"`
	Artist             string    `gorm:"column:artist;type:varchar(42);not null" json:"artist"`
	Beneficiary        string    `gorm:"column:beneficiary;type:varchar(42);not null" json:"beneficiary"`
	Platform           string    `gorm:"column:platform;type:varchar(42);not null" json:"platform"`
	PatronageNumerator uint64    `gorm:"column:patronage_numerator;not null" json:"patronage_numerator"`
	CreatedAt          time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt          time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Steward) TableName() string {
	return "Stewards"
}

// PullFund is one pull-payment ledger entry. Zeroed entries are kept.
type PullFund struct {
	Address   string    `gorm:"column:address;type:varchar(42);primaryKey" json:"address"`
	Balance   Wei       `gorm:"column:balance;type:varchar(80);not null" json:"balance"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (PullFund) TableName() string {
	return "PullFunds"
}

// Patron records an address that held the asset at least once.
type Patron struct {
	Address  string `gorm:"column:address;type:varchar(42);primaryKey" json:"address"`
	Position int    `gorm:"column:position;not null;index" json:"position"`
	// TimeHeld is the cumulative seconds over completed tenures.
	TimeHeld  int64     `gorm:"column:time_held;not null;default:0" json:"time_held"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Patron) TableName() string {
	return "Patrons"
}
