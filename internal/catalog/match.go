package catalog

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/vladimiradmaev/calorie-helper/internal/domain"
)

// MatchTier tells which rule found a product
type MatchTier int

const (
	NoMatch MatchTier = iota
	ExactMatch
	TokenMatch
	SubstringMatch
)

// Normalize lowercases a product name, trims it and collapses inner whitespace
func Normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func sortedTokens(name string) string {
	tokens := strings.Fields(name)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// Match finds the catalog product for query. Tiers are tried in order:
// exact normalized name, same multiset of words, then substring in either
// direction preferring the shortest product name. Equal lengths are decided
// alphabetically.
func Match(query string, products []domain.Product) (*domain.Product, MatchTier) {
	q := Normalize(query)
	if q == "" {
		return nil, NoMatch
	}

	for i := range products {
		if Normalize(products[i].Name) == q {
			return &products[i], ExactMatch
		}
	}

	qTokens := sortedTokens(q)
	for i := range products {
		if sortedTokens(Normalize(products[i].Name)) == qTokens {
			return &products[i], TokenMatch
		}
	}

	var best *domain.Product
	bestLen := 0
	for i := range products {
		name := Normalize(products[i].Name)
		if name == "" {
			continue
		}
		if !strings.Contains(q, name) && !strings.Contains(name, q) {
			continue
		}
		n := utf8.RuneCountInString(name)
		if best == nil || n < bestLen || (n == bestLen && name < Normalize(best.Name)) {
			best = &products[i]
			bestLen = n
		}
	}
	if best != nil {
		return best, SubstringMatch
	}
	return nil, NoMatch
}

func (t MatchTier) String() string {
	switch t {
	case ExactMatch:
		return "exact"
	case TokenMatch:
		return "tokens"
	case SubstringMatch:
		return "substring"
	default:
		return "none"
	}
}
