package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vladimiradmaev/calorie-helper/internal/domain"
	apperrors "github.com/vladimiradmaev/calorie-helper/internal/errors"
	"github.com/vladimiradmaev/calorie-helper/internal/logger"
)

// Service owns the product catalog: lookups, edits, seeding and the
// snapshot mirror
type Service struct {
	repo     domain.ProductRepository
	snapshot Snapshot
	now      func() time.Time
}

// NewService creates a catalog service. snapshot may be nil, then the
// catalog is neither seeded nor mirrored.
func NewService(repo domain.ProductRepository, snapshot Snapshot) *Service {
	return &Service{repo: repo, snapshot: snapshot, now: time.Now}
}

// Lookup resolves a free-form name against the catalog
func (s *Service) Lookup(ctx context.Context, name string) (*domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	product, tier := Match(name, products)
	if product == nil {
		return nil, nil
	}
	if tier != ExactMatch {
		logger.Debug("Catalog match", "query", name, "product", product.Name, "tier", tier.String())
	}
	return product, nil
}

// List returns up to limit products sorted by name; limit <= 0 means all
func (s *Service) List(ctx context.Context, limit int) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

// Add stores a verified product, replacing the density of an existing one
func (s *Service) Add(ctx context.Context, name string, kcalPer100 float64) (*domain.Product, error) {
	product, err := s.upsert(ctx, name, kcalPer100)
	if err != nil {
		return nil, err
	}
	s.Mirror(ctx)
	return product, nil
}

// AddPending stores every confirmed candidate and mirrors once
func (s *Service) AddPending(ctx context.Context, pending []domain.PendingProduct) (int, error) {
	saved := 0
	for _, p := range pending {
		if _, err := s.upsert(ctx, p.Name, p.KcalPer100); err != nil {
			if saved > 0 {
				s.Mirror(ctx)
			}
			return saved, err
		}
		saved++
	}
	if saved > 0 {
		s.Mirror(ctx)
	}
	return saved, nil
}

func (s *Service) upsert(ctx context.Context, name string, kcalPer100 float64) (*domain.Product, error) {
	normalized := Normalize(name)
	if normalized == "" {
		return nil, apperrors.NewValidationError("product name is empty")
	}
	if kcalPer100 < 0 {
		return nil, apperrors.NewValidationError("calorie density must not be negative")
	}

	product := &domain.Product{
		Name:         normalized,
		KcalPer100:   kcalPer100,
		IsVerified:   true,
		LastVerified: s.now(),
	}
	if err := s.repo.UpsertProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// Delete removes the product with exactly this (normalized) name
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.repo.DeleteProduct(ctx, Normalize(name)); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apperrors.NewNotFoundError(apperrors.ErrProductNotFound.Code, fmt.Sprintf("product %q not found", name))
		}
		return err
	}
	s.Mirror(ctx)
	return nil
}

// SeedIfEmpty loads the snapshot into an empty catalog and returns the
// number of inserted products
func (s *Service) SeedIfEmpty(ctx context.Context) (int, error) {
	if s.snapshot == nil {
		return 0, nil
	}

	count, err := s.repo.CountProducts(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	data, err := s.snapshot.Load(ctx)
	if errors.Is(err, ErrSnapshotMissing) {
		logger.Warn("Catalog snapshot not found, starting with an empty catalog", "backend", s.snapshot.Name())
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.NewStorageError(err, s.snapshot.Name())
	}

	entries, err := DecodeSnapshot(data)
	if err != nil {
		return 0, err
	}

	now := s.now()
	seen := make(map[string]bool, len(entries))
	products := make([]domain.Product, 0, len(entries))
	for _, e := range entries {
		name := Normalize(e.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		products = append(products, domain.Product{
			Name:         name,
			KcalPer100:   e.Kcal,
			IsVerified:   true,
			LastVerified: now,
		})
	}

	if err := s.repo.InsertProducts(ctx, products); err != nil {
		return 0, err
	}
	logger.Info("Catalog seeded from snapshot", "products", len(products), "backend", s.snapshot.Name())
	return len(products), nil
}

// Mirror rewrites the snapshot from the catalog table. Failures are logged
// and never surface to the caller.
func (s *Service) Mirror(ctx context.Context) {
	if s.snapshot == nil {
		return
	}
	if err := s.writeSnapshot(ctx); err != nil {
		logger.Error("Failed to mirror catalog snapshot", "backend", s.snapshot.Name(), "error", err)
	}
}

func (s *Service) writeSnapshot(ctx context.Context) error {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return err
	}
	entries := make([]SnapshotEntry, 0, len(products))
	for _, p := range products {
		entries = append(entries, SnapshotEntry{Name: p.Name, Kcal: p.KcalPer100})
	}
	data, err := EncodeSnapshot(entries)
	if err != nil {
		return err
	}
	return s.snapshot.Save(ctx, data)
}
