package domain

import "time"

// Token is the custody record of the stewarded asset.
type Token struct {
	TokenID   uint64    `gorm:"column:token_id;primaryKey;autoIncrement:false" json:"token_id"`
	Owner     string    `gorm:"column:owner;type:varchar(42);not null" json:"owner"`
	URI       string    `gorm:"column:uri" json:"uri"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Token) TableName() string {
	return "Tokens"
}

// Recipient is an account on the payment rail. Balance is spendable wei;
// Received and Charged are lifetime totals. Blocked recipients refuse
// inbound wei.
type Recipient struct {
	Address   string    `gorm:"column:address;type:varchar(42);primaryKey" json:"address"`
	Balance   Wei       `gorm:"column:balance;type:varchar(80);not null;default:'0'" json:"balance"`
	Received  Wei       `gorm:"column:received;type:varchar(80);not null" json:"received"`
	Charged   Wei       `gorm:"column:charged;type:varchar(80);not null;default:'0'" json:"charged"`
	Blocked   bool      `gorm:"column:blocked;not null;default:false" json:"blocked"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Recipient) TableName() string {
	return "Recipients"
}
