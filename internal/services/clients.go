package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/diewo77/go-chantiers/internal/audit"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"github.com/diewo77/go-chantiers/validation"
	"gorm.io/gorm"
)

// ErrClientInUse is returned when deleting a client that still has job sites.
var ErrClientInUse = errors.New("client still has chantiers")

// ClientInput creates or edits a client.
type ClientInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

func (in ClientInput) Validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.MaxLen("name", in.Name, 255, v)
	validation.Email("email", in.Email, v)
	validation.MaxLen("phone", in.Phone, 50, v)
	validation.MaxLen("address", in.Address, 500, v)
	return v
}

// ClientService manages the tenant's customer list.
type ClientService struct {
	db *gorm.DB
}

func NewClientService(db *gorm.DB) *ClientService {
	return &ClientService{db: db}
}

// List returns clients sorted by name. query matches name, email or phone.
func (s *ClientService) List(ctx context.Context, sc tenancy.Scope, query string) ([]models.Client, error) {
	q := s.db.WithContext(ctx).Scopes(tenancy.Owned(sc))
	if query = strings.TrimSpace(query); query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?", like, like, like)
	}
	var clients []models.Client
	err := q.Order("name ASC, id ASC").Find(&clients).Error
	return clients, err
}

func (s *ClientService) Get(ctx context.Context, sc tenancy.Scope, id uint) (*models.Client, error) {
	var c models.Client
	if err := s.db.WithContext(ctx).Scopes(tenancy.Owned(sc)).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, fmt.Errorf("client %d: %w", id, err)
	}
	return &c, nil
}

func (s *ClientService) Create(ctx context.Context, sc tenancy.Scope, in ClientInput) (*models.Client, error) {
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	c := &models.Client{EntrepriseID: sc.TenantID}
	applyClient(c, in)
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

func (s *ClientService) Update(ctx context.Context, sc tenancy.Scope, id uint, in ClientInput) (*models.Client, error) {
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	applyClient(c, in)
	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return nil, fmt.Errorf("update client %d: %w", id, err)
	}
	return c, nil
}

// Delete removes the client permanently.
func (s *ClientService) Delete(ctx context.Context, sc tenancy.Scope, id uint) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Chantier{}).Scopes(tenancy.Owned(sc)).Where("client_id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrClientInUse
	}
	res := s.db.WithContext(ctx).Scopes(tenancy.Owned(sc)).Where("id = ?", id).Delete(&models.Client{})
	if res.Error != nil {
		return fmt.Errorf("delete client %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("client %d: %w", id, gorm.ErrRecordNotFound)
	}
	return audit.Record(ctx, s.db, sc, "client", id, audit.ActionDelete, nil)
}

func applyClient(c *models.Client, in ClientInput) {
	c.Name = strings.TrimSpace(in.Name)
	c.Phone = in.Phone
	c.Email = in.Email
	c.Address = in.Address
	c.Notes = in.Notes
}
