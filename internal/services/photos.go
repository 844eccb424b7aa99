package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/diewo77/go-chantiers/internal/audit"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/storage"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"github.com/diewo77/go-chantiers/validation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("photo exceeds the upload limit")

// PhotoService stores job site photos in a bucket with a metadata row.
type PhotoService struct {
	db       *gorm.DB
	bucket   storage.Bucket
	signer   *storage.Signer
	maxBytes int64
	logger   *slog.Logger
}

func NewPhotoService(db *gorm.DB, bucket storage.Bucket, signer *storage.Signer, maxBytes int64, logger *slog.Logger) *PhotoService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PhotoService{db: db, bucket: bucket, signer: signer, maxBytes: maxBytes, logger: logger}
}

// PhotoUpload is one uploaded file.
type PhotoUpload struct {
	Body        io.Reader
	ContentType string
	Caption     string
}

// Upload writes the object first, then its row. When the row cannot be
// inserted the object is deleted again; a failure of that delete is logged
// and the insert error is returned.
func (s *PhotoService) Upload(ctx context.Context, sc tenancy.Scope, chantierID uint, up PhotoUpload) (*models.ChantierPhoto, error) {
	if s.bucket == nil {
		return nil, ErrNoBucket
	}
	ext, ok := storage.Extension(up.ContentType)
	if !ok {
		return nil, validation.Violations{"file": "unsupported_type"}
	}
	v := validation.Violations{}
	validation.MaxLen("caption", up.Caption, 500, v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Chantier{}).Scopes(tenancy.Owned(sc)).Where("id = ?", chantierID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("chantier %d: %w", chantierID, gorm.ErrRecordNotFound)
	}

	key := storage.PhotoKey(sc.TenantID, chantierID, uuid.New(), ext)
	body := up.Body
	if s.maxBytes > 0 {
		body = io.LimitReader(up.Body, s.maxBytes+1)
	}
	size, err := s.bucket.Put(ctx, key, body, up.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store photo: %w", err)
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		s.removeObject(ctx, key)
		return nil, ErrTooLarge
	}

	p := &models.ChantierPhoto{
		EntrepriseID: sc.TenantID,
		ChantierID:   chantierID,
		UploadedBy:   sc.UserID,
		ObjectKey:    key,
		ContentType:  up.ContentType,
		Size:         size,
		Caption:      up.Caption,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return audit.Record(ctx, tx, sc, "chantier_photo", p.ID, audit.ActionCreate, map[string]any{"chantier_id": chantierID})
	})
	if err != nil {
		s.removeObject(ctx, key)
		return nil, fmt.Errorf("save photo: %w", err)
	}
	s.sign(ctx, p)
	return p, nil
}

func (s *PhotoService) removeObject(ctx context.Context, key string) {
	if err := s.bucket.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Error("orphan photo object", "key", key, "err", err)
	}
}

func (s *PhotoService) sign(ctx context.Context, p *models.ChantierPhoto) {
	if s.signer == nil {
		return
	}
	u, err := s.signer.URL(ctx, p.ObjectKey)
	if err != nil {
		s.logger.Warn("photo url not signed", "key", p.ObjectKey, "err", err)
		return
	}
	p.URL = u
}

// List returns the photos of a job site with signed URLs.
func (s *PhotoService) List(ctx context.Context, sc tenancy.Scope, chantierID uint) ([]models.ChantierPhoto, error) {
	var photos []models.ChantierPhoto
	err := s.db.WithContext(ctx).Scopes(tenancy.Owned(sc)).
		Where("chantier_id = ?", chantierID).
		Order("created_at DESC, id DESC").
		Find(&photos).Error
	if err != nil {
		return nil, err
	}
	for i := range photos {
		s.sign(ctx, &photos[i])
	}
	return photos, nil
}

// Delete removes the row then the object.
func (s *PhotoService) Delete(ctx context.Context, sc tenancy.Scope, chantierID, photoID uint) error {
	var p models.ChantierPhoto
	err := s.db.WithContext(ctx).Scopes(tenancy.Owned(sc)).
		Where("id = ? AND chantier_id = ?", photoID, chantierID).
		First(&p).Error
	if err != nil {
		return fmt.Errorf("photo %d: %w", photoID, err)
	}
	if err := s.db.WithContext(ctx).Delete(&p).Error; err != nil {
		return fmt.Errorf("delete photo %d: %w", photoID, err)
	}
	if s.bucket != nil {
		s.removeObject(ctx, p.ObjectKey)
	}
	return nil
}

// Open streams an object after its signed URL was verified. The key must
// belong to a known photo.
func (s *PhotoService) Open(ctx context.Context, key string) (io.ReadCloser, *models.ChantierPhoto, error) {
	if s.bucket == nil {
		return nil, nil, ErrNoBucket
	}
	var p models.ChantierPhoto
	if err := s.db.WithContext(ctx).Where("object_key = ?", key).First(&p).Error; err != nil {
		return nil, nil, fmt.Errorf("photo %q: %w", key, err)
	}
	rc, err := s.bucket.Open(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return rc, &p, nil
}

// Verify checks a signed download link and returns the object key.
func (s *PhotoService) Verify(ctx context.Context, u *url.URL) (string, error) {
	if s.signer == nil {
		return "", storage.ErrBadSignature
	}
	return s.signer.Verify(ctx, u)
}
