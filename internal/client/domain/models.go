package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Client is the bill-to party of an invoice. Clients are managed elsewhere;
// this service only reads them.
type Client struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	BusinessID snowflake.ID `gorm:"not null;index" json:"business_id"`
	Name       string       `gorm:"type:text;not null" json:"name"`
	Email      string       `gorm:"type:text;not null" json:"email"`
	Address    string       `gorm:"type:text;not null;default:''" json:"address"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updated_at"`
}

func (Client) TableName() string { return "clients" }
