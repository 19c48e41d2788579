// Package tenant istek kimliğini (JWT client_id veya slug) bir işletmeye çözer.
// Çözülemeyen her istek AUTH_REQUIRED ile reddedilir.
package tenant

import (
	"context"
	"errors"
	"strings"

	"restoran-pos/internal/apperror"
	"restoran-pos/internal/models"

	"gorm.io/gorm"
)

type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

func (r *Resolver) BySlug(ctx context.Context, slug string) (*models.Client, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, apperror.ErrAuthRequired
	}
	return r.find(ctx, "slug = ?", slug)
}

func (r *Resolver) ByID(ctx context.Context, id uint) (*models.Client, error) {
	if id == 0 {
		return nil, apperror.ErrAuthRequired
	}
	return r.find(ctx, "id = ?", id)
}

func (r *Resolver) find(ctx context.Context, query string, arg any) (*models.Client, error) {
	var c models.Client
	err := r.db.WithContext(ctx).Where(query, arg).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrAuthRequired
	}
	if err != nil {
		return nil, apperror.Internal("işletme okunamadı", err)
	}
	// Askıdaki / arşivlenmiş işletme çözülmüş sayılmaz
	if !c.IsServing() {
		return nil, apperror.New(apperror.CodeAuthRequired, "İşletme hizmet dışı")
	}
	return &c, nil
}
