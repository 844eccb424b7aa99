package policy

import (
	"context"
	"errors"

	"github.com/diewo77/go-chantiers/internal/access"
	"github.com/diewo77/go-chantiers/internal/config"
	"github.com/diewo77/go-chantiers/internal/models"
	"gorm.io/gorm"
)

// RoleResolver maps a user to a built-in profile: operators by email,
// everyone else by their company role.
type RoleResolver struct {
	db  *gorm.DB
	sub config.SubscriptionConfig
}

func NewRoleResolver(db *gorm.DB, sub config.SubscriptionConfig) *RoleResolver {
	return &RoleResolver{db: db, sub: sub}
}

// Resolve returns nil for users without a company role.
func (r *RoleResolver) Resolve(ctx context.Context, userID uint) (*access.Profile, error) {
	var u models.User
	err := r.db.WithContext(ctx).Select("id", "email", "role").First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ProfileFor(u.Role, r.sub.IsOperator(u.Email)), nil
}

// ProfileFor picks the profile of a role.
func ProfileFor(role models.Role, operator bool) *access.Profile {
	if operator {
		return access.Operator
	}
	switch role {
	case models.RoleOwner:
		return access.Owner
	case models.RoleMember:
		return access.Member
	}
	return nil
}
