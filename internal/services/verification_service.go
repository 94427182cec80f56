package services

import (
	"context"
	"math"
	"time"

	"github.com/vladimiradmaev/calorie-helper/internal/domain"
	"github.com/vladimiradmaev/calorie-helper/internal/logger"
)

const discrepancyThreshold = 20.0

// Discrepancy is a product whose stored density differs from the estimate
type Discrepancy struct {
	Product   string
	Stored    float64
	Estimated float64
}

// VerificationService re-checks catalog densities against the oracle
type VerificationService struct {
	products domain.ProductRepository
	oracle   domain.CalorieOracle
	batch    int
	now      func() time.Time
}

// NewVerificationService creates a verifier checking batch products per run
func NewVerificationService(products domain.ProductRepository, oracle domain.CalorieOracle, batch int) *VerificationService {
	if batch <= 0 {
		batch = 5
	}
	return &VerificationService{products: products, oracle: oracle, batch: batch, now: time.Now}
}

// Verify checks the least recently verified products and returns the
// discrepancies it found. Every checked product gets a new last_verified.
func (s *VerificationService) Verify(ctx context.Context) ([]Discrepancy, error) {
	products, err := s.products.ListStaleProducts(ctx, s.batch)
	if err != nil {
		return nil, err
	}
	logger.Info("Running catalog verification", "products", len(products))

	var found []Discrepancy
	for _, p := range products {
		if ctx.Err() != nil {
			return found, ctx.Err()
		}
		if estimate, ok := s.oracle.EstimateKcal(ctx, p.Name); ok {
			if math.Abs(float64(estimate)-p.KcalPer100) > discrepancyThreshold {
				logger.Warn("Calorie discrepancy", "product", p.Name, "stored", p.KcalPer100, "estimated", estimate)
				found = append(found, Discrepancy{Product: p.Name, Stored: p.KcalPer100, Estimated: float64(estimate)})
			}
		}
		if err := s.products.MarkProductVerified(ctx, p.ID, s.now()); err != nil {
			return found, err
		}
	}
	return found, nil
}
