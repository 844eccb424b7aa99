package services

import (
	"context"

	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Summary is the dashboard overview of a tenant.
type Summary struct {
	Revenue           decimal.Decimal                 `json:"revenue_ttc"`
	Outstanding       decimal.Decimal                 `json:"outstanding_ttc"`
	QuotesByStatus    map[models.QuoteStatus]int64    `json:"quotes_by_status"`
	ChantiersByStatus map[models.ChantierStatus]int64 `json:"chantiers_by_status"`
	Clients           int64                           `json:"clients"`
}

type DashboardService struct {
	db *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db}
}

// Revenue sums the TTC amount of the tenant's invoices in the given status.
func (s *DashboardService) Revenue(ctx context.Context, sc tenancy.Scope, status models.InvoiceStatus) (decimal.Decimal, error) {
	var invoices []models.Invoice
	err := s.db.WithContext(ctx).Scopes(tenancy.Owned(sc)).
		Where("status = ?", status).
		Preload("Lines").
		Find(&invoices).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for i := range invoices {
		total = total.Add(invoices[i].Totals().TTC)
	}
	return total, nil
}

type statusCount struct {
	Status string
	N      int64
}

func (s *DashboardService) countByStatus(ctx context.Context, sc tenancy.Scope, model any) ([]statusCount, error) {
	var rows []statusCount
	err := s.db.WithContext(ctx).Model(model).Scopes(tenancy.Owned(sc)).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	return rows, err
}

// Summary gathers the dashboard figures.
func (s *DashboardService) Summary(ctx context.Context, sc tenancy.Scope) (*Summary, error) {
	out := &Summary{
		QuotesByStatus:    map[models.QuoteStatus]int64{},
		ChantiersByStatus: map[models.ChantierStatus]int64{},
	}
	var err error
	if out.Revenue, err = s.Revenue(ctx, sc, models.InvoicePaid); err != nil {
		return nil, err
	}
	if out.Outstanding, err = s.Revenue(ctx, sc, models.InvoiceSent); err != nil {
		return nil, err
	}
	quotes, err := s.countByStatus(ctx, sc, &models.Quote{})
	if err != nil {
		return nil, err
	}
	for _, r := range quotes {
		out.QuotesByStatus[models.QuoteStatus(r.Status)] = r.N
	}
	chantiers, err := s.countByStatus(ctx, sc, &models.Chantier{})
	if err != nil {
		return nil, err
	}
	for _, r := range chantiers {
		out.ChantiersByStatus[models.ChantierStatus(r.Status)] = r.N
	}
	if err := s.db.WithContext(ctx).Model(&models.Client{}).Scopes(tenancy.Owned(sc)).Count(&out.Clients).Error; err != nil {
		return nil, err
	}
	return out, nil
}
