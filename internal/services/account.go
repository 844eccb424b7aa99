// Package services holds the tenant-scoped business operations that sit
// between the HTTP handlers and the database.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/go-chantiers/auth"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/validation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken      = errors.New("email already registered")
	ErrBadCredentials  = errors.New("invalid email or password")
	ErrAlreadyAttached = errors.New("user already belongs to a company")
	ErrUnknownCode     = errors.New("unknown company code")
)

// codeAttempts bounds join code generation when a code collides.
const codeAttempts = 5

// SignupInput registers a new account.
type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (in SignupInput) Validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("email", in.Email, v)
	validation.Email("email", in.Email, v)
	if len(in.Password) < auth.MinPasswordLength {
		v["password"] = "too_short"
	}
	validation.MaxLen("name", in.Name, 255, v)
	return v
}

// CompanyInput creates or edits the tenant profile.
type CompanyInput struct {
	Name       string `json:"name"`
	LegalName  string `json:"legal_name"`
	SIRET      string `json:"siret"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
}

func (in CompanyInput) Validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.MaxLen("name", in.Name, 255, v)
	validation.SIRET("siret", in.SIRET, v)
	validation.Email("email", in.Email, v)
	return v
}

// AccountService handles accounts and company membership.
type AccountService struct {
	db        *gorm.DB
	trialDays int
	now       func() time.Time
}

// NewAccountService creates the service. New companies get a trial of
// trialDays days.
func NewAccountService(db *gorm.DB, trialDays int) *AccountService {
	return &AccountService{db: db, trialDays: trialDays, now: time.Now}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Signup creates an account without a company.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{Email: in.Email, Name: strings.TrimSpace(in.Name), Password: hash}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("signup: %w", err)
	}
	return u, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords give
// the same error.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if !auth.CheckPassword(u.Password, password) {
		return nil, ErrBadCredentials
	}
	return &u, nil
}

// User loads an account by id.
func (s *AccountService) User(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, fmt.Errorf("user %d: %w", id, err)
	}
	return &u, nil
}

// newCode derives an 8 character upper-case join code.
func newCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// CreateCompany creates a tenant in trial and makes userID its owner.
func (s *AccountService) CreateCompany(ctx context.Context, userID uint, in CompanyInput) (*models.Entreprise, error) {
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	var ent *models.Entreprise
	var err error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			u, err := loadUnattached(tx, userID)
			if err != nil {
				return err
			}
			now := s.now()
			ent = &models.Entreprise{
				Code:               newCode(),
				TrialStartsAt:      now,
				TrialEndsAt:        now.AddDate(0, 0, s.trialDays),
				SubscriptionStatus: models.SubscriptionTrialing,
			}
			applyCompany(ent, in)
			if err := tx.Create(ent).Error; err != nil {
				return err
			}
			return attach(tx, u, ent.ID, models.RoleOwner)
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create company: %w", err)
	}
	return ent, nil
}

// JoinCompany attaches userID as a member of the company owning code.
func (s *AccountService) JoinCompany(ctx context.Context, userID uint, code string) (*models.Entreprise, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	v := validation.Violations{}
	validation.CompanyCode("code", code, v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	var ent models.Entreprise
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("code = ?", code).First(&ent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownCode
			}
			return err
		}
		u, err := loadUnattached(tx, userID)
		if err != nil {
			return err
		}
		return attach(tx, u, ent.ID, models.RoleMember)
	})
	if err != nil {
		return nil, fmt.Errorf("join company: %w", err)
	}
	return &ent, nil
}

// Company loads a tenant profile.
func (s *AccountService) Company(ctx context.Context, tenantID uint) (*models.Entreprise, error) {
	var ent models.Entreprise
	if err := s.db.WithContext(ctx).First(&ent, tenantID).Error; err != nil {
		return nil, fmt.Errorf("company %d: %w", tenantID, err)
	}
	return &ent, nil
}

// UpdateCompany edits the tenant profile. The join code, trial window and
// billing state are not editable here.
func (s *AccountService) UpdateCompany(ctx context.Context, tenantID uint, in CompanyInput) (*models.Entreprise, error) {
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	ent, err := s.Company(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	applyCompany(ent, in)
	if err := s.db.WithContext(ctx).Save(ent).Error; err != nil {
		return nil, fmt.Errorf("update company %d: %w", tenantID, err)
	}
	return ent, nil
}

func loadUnattached(tx *gorm.DB, userID uint) (*models.User, error) {
	var u models.User
	if err := tx.First(&u, userID).Error; err != nil {
		return nil, err
	}
	if u.EntrepriseID != nil || u.Role != "" {
		return nil, ErrAlreadyAttached
	}
	return &u, nil
}

// attach sets the tenant and role only if the user is still unattached, so
// a role is never overwritten.
func attach(tx *gorm.DB, u *models.User, tenantID uint, role models.Role) error {
	res := tx.Model(&models.User{}).
		Where("id = ? AND entreprise_id IS NULL", u.ID).
		Updates(map[string]any{"entreprise_id": tenantID, "role": role})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyAttached
	}
	u.EntrepriseID = &tenantID
	u.Role = role
	return nil
}

func applyCompany(ent *models.Entreprise, in CompanyInput) {
	ent.Name = strings.TrimSpace(in.Name)
	ent.LegalName = in.LegalName
	ent.SIRET = in.SIRET
	ent.Email = in.Email
	ent.Phone = in.Phone
	ent.Address = in.Address
	ent.PostalCode = in.PostalCode
	ent.City = in.City
}
