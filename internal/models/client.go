package models

import "time"

// Client is a customer contact of a tenant. Deletion is permanent.
type Client struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	EntrepriseID uint      `gorm:"index;not null" json:"entreprise_id"`

	Name    string `gorm:"size:255;not null" json:"name"`
	Phone   string `gorm:"size:50" json:"phone,omitempty"`
	Email   string `gorm:"size:255" json:"email,omitempty"`
	Address string `gorm:"size:500" json:"address,omitempty"`
	Notes   string `gorm:"type:text" json:"notes,omitempty"`
}

// GetTenantID implements the tenant ownership contract.
func (c *Client) GetTenantID() uint {
	return c.EntrepriseID
}
