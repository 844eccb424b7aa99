package models

import (
	"time"
)

// Role is the position of a user inside their tenant.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// User is an authenticated account. Rows live in the profiles table.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string    `gorm:"size:255" json:"name,omitempty"`
	Password  string    `gorm:"size:255;not null" json:"-"` // Hashed, never exposed in JSON
	// Role is empty until the user creates or joins a company, and is never
	// changed afterwards.
	Role Role `gorm:"size:20" json:"role,omitempty"`
	// EntrepriseID is nil until the user is attached to a tenant.
	EntrepriseID *uint       `gorm:"index" json:"entreprise_id,omitempty"`
	Entreprise   *Entreprise `gorm:"foreignKey:EntrepriseID" json:"-"`
}

// TableName keeps user accounts in the profiles table.
func (User) TableName() string {
	return "profiles"
}

// TenantID returns the user's tenant or zero when unassigned.
func (u *User) TenantID() uint {
	if u.EntrepriseID == nil {
		return 0
	}
	return *u.EntrepriseID
}

// DisplayName falls back to the email when no name was given.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
