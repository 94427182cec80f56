package services

import (
	"context"

	"github.com/vladimiradmaev/calorie-helper/internal/catalog"
	"github.com/vladimiradmaev/calorie-helper/internal/domain"
	"github.com/vladimiradmaev/calorie-helper/internal/logger"
)

// ProductLookup finds the catalog product that best matches a name
type ProductLookup interface {
	Lookup(ctx context.Context, name string) (*domain.Product, error)
}

// Resolution is the outcome of resolving one parsed item
type Resolution struct {
	Resolved  bool
	KcalTotal float64
	Per100    float64
	Source    string
	// Pending is a catalog candidate learned while resolving
	Pending *domain.PendingProduct
}

// KcalStrategy is one step of the calorie resolution chain
type KcalStrategy interface {
	Name() string
	Resolve(ctx context.Context, item domain.ParsedItem) (Resolution, error)
}

// CalorieResolver tries its strategies in order; the first that resolves wins
type CalorieResolver struct {
	strategies []KcalStrategy
}

// NewCalorieResolver builds the standard chain: manual value, catalog,
// oracle estimate
func NewCalorieResolver(products ProductLookup, oracle domain.CalorieOracle) *CalorieResolver {
	return NewCalorieResolverWith(
		manualStrategy{products: products},
		catalogStrategy{products: products},
		estimateStrategy{oracle: oracle},
	)
}

// NewCalorieResolverWith builds a resolver from explicit strategies
func NewCalorieResolverWith(strategies ...KcalStrategy) *CalorieResolver {
	return &CalorieResolver{strategies: strategies}
}

// Resolve returns the first successful resolution or one with Resolved=false
func (r *CalorieResolver) Resolve(ctx context.Context, item domain.ParsedItem) (Resolution, error) {
	for _, s := range r.strategies {
		res, err := s.Resolve(ctx, item)
		if err != nil {
			return Resolution{}, err
		}
		if res.Resolved {
			res.Source = s.Name()
			return res, nil
		}
	}
	return Resolution{}, nil
}

type manualStrategy struct {
	products ProductLookup
}

func (manualStrategy) Name() string { return "manual" }

func (s manualStrategy) Resolve(ctx context.Context, item domain.ParsedItem) (Resolution, error) {
	if item.ManualKcal == nil {
		return Resolution{}, nil
	}
	value := *item.ManualKcal

	res := Resolution{Resolved: true}
	if item.KcalMode == domain.KcalModeTotal {
		res.KcalTotal = value
		res.Per100 = domain.Per100FromTotal(value, item.Weight)
	} else {
		res.Per100 = value
		res.KcalTotal = domain.KcalFromPer100(item.Weight, value)
	}

	known, err := s.products.Lookup(ctx, item.Name)
	if err != nil {
		return Resolution{}, err
	}
	if known == nil {
		res.Pending = &domain.PendingProduct{Name: catalog.Normalize(item.Name), KcalPer100: res.Per100}
	}
	return res, nil
}

type catalogStrategy struct {
	products ProductLookup
}

func (catalogStrategy) Name() string { return "catalog" }

func (s catalogStrategy) Resolve(ctx context.Context, item domain.ParsedItem) (Resolution, error) {
	product, err := s.products.Lookup(ctx, item.Name)
	if err != nil || product == nil {
		return Resolution{}, err
	}
	return Resolution{
		Resolved:  true,
		Per100:    product.KcalPer100,
		KcalTotal: domain.KcalFromPer100(item.Weight, product.KcalPer100),
	}, nil
}

type estimateStrategy struct {
	oracle domain.CalorieOracle
}

func (estimateStrategy) Name() string { return "estimate" }

func (s estimateStrategy) Resolve(ctx context.Context, item domain.ParsedItem) (Resolution, error) {
	if s.oracle == nil {
		return Resolution{}, nil
	}
	kcal, ok := s.oracle.EstimateKcal(ctx, item.Name)
	if !ok {
		return Resolution{}, nil
	}
	logger.Info("Estimated calories", "product", item.Name, "kcal_per_100", kcal)

	per100 := float64(kcal)
	return Resolution{
		Resolved:  true,
		Per100:    per100,
		KcalTotal: domain.KcalFromPer100(item.Weight, per100),
		Pending:   &domain.PendingProduct{Name: catalog.Normalize(item.Name), KcalPer100: per100},
	}, nil
}
