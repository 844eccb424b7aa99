package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/diewo77/go-chantiers/internal/models"
	"gorm.io/gorm"
)

// ErrTenantNotFound is returned by checkers when the tenant row is missing.
var ErrTenantNotFound = errors.New("subscription: tenant not found")

// Checker answers whether a tenant is active. Implementations return an
// error when the backing store cannot be read.
type Checker interface {
	IsCompanyActive(ctx context.Context, tenantID uint) (Result, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, tenantID uint) (Result, error)

// IsCompanyActive calls f.
func (f CheckerFunc) IsCompanyActive(ctx context.Context, tenantID uint) (Result, error) {
	return f(ctx, tenantID)
}

// DBChecker derives the state from the entreprises table.
type DBChecker struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDBChecker creates a checker reading tenants through db.
func NewDBChecker(db *gorm.DB) *DBChecker {
	return &DBChecker{db: db, now: time.Now}
}

// IsCompanyActive implements Checker.
func (c *DBChecker) IsCompanyActive(ctx context.Context, tenantID uint) (Result, error) {
	var e models.Entreprise
	err := c.db.WithContext(ctx).First(&e, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Result{}, ErrTenantNotFound
	}
	if err != nil {
		return Result{}, fmt.Errorf("load tenant %d: %w", tenantID, err)
	}
	return Evaluate(&e, c.now()), nil
}

// Evaluate maps a tenant row to a result at instant now.
func Evaluate(e *models.Entreprise, now time.Time) Result {
	switch e.SubscriptionStatus {
	case models.SubscriptionActive:
		return Active("subscribed")
	case models.SubscriptionTrialing:
		if e.TrialRunning(now) {
			return Active("trial")
		}
		return Inactive("trial_ended")
	case models.SubscriptionExpired:
		return Inactive("expired")
	default:
		return Unknown("status_unknown")
	}
}

// CachedChecker wraps a Checker with TTL-based caching of definite answers.
// Unknown results and errors are never cached.
type CachedChecker struct {
	inner Checker
	ttl   time.Duration
	mu    sync.RWMutex
	cache map[uint]cacheEntry
}

type cacheEntry struct {
	result    Result
	expiresAt time.Time
}

// NewCachedChecker wraps inner, keeping results for ttl.
func NewCachedChecker(inner Checker, ttl time.Duration) *CachedChecker {
	return &CachedChecker{
		inner: inner,
		ttl:   ttl,
		cache: make(map[uint]cacheEntry),
	}
}

// IsCompanyActive implements Checker.
func (c *CachedChecker) IsCompanyActive(ctx context.Context, tenantID uint) (Result, error) {
	c.mu.RLock()
	entry, ok := c.cache[tenantID]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.result, nil
	}

	res, err := c.inner.IsCompanyActive(ctx, tenantID)
	if err != nil || !res.Known() {
		return res, err
	}

	c.mu.Lock()
	c.cache[tenantID] = cacheEntry{result: res, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return res, nil
}

// Invalidate drops the cached answer for a tenant.
// Call it when billing changes the tenant's status.
func (c *CachedChecker) Invalidate(tenantID uint) {
	c.mu.Lock()
	delete(c.cache, tenantID)
	c.mu.Unlock()
}
