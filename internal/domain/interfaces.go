package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when a row does not exist
var ErrNotFound = errors.New("not found")

// UserRepository handles user persistence
type UserRepository interface {
	GetOrCreateUser(ctx context.Context, telegramID int64) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// ProductRepository handles catalog persistence
type ProductRepository interface {
	ListProducts(ctx context.Context) ([]Product, error)
	ListStaleProducts(ctx context.Context, limit int) ([]Product, error)
	GetProductByName(ctx context.Context, name string) (*Product, error)
	UpsertProduct(ctx context.Context, product *Product) error
	DeleteProduct(ctx context.Context, name string) error
	CountProducts(ctx context.Context) (int64, error)
	InsertProducts(ctx context.Context, products []Product) error
	MarkProductVerified(ctx context.Context, id uint, at time.Time) error
}

// MealRepository handles meal persistence
type MealRepository interface {
	CreateMeal(ctx context.Context, meal *Meal) error
	GetMeal(ctx context.Context, id string) (*Meal, error)
	GetLastMeal(ctx context.Context, userID int64, at time.Time) (*Meal, error)
	TouchMeal(ctx context.Context, id string, at time.Time) error
	UpdateMealReportMessage(ctx context.Context, id string, messageID int) error
	DeleteMealsAt(ctx context.Context, userID int64, createdAt time.Time) (int64, error)
}

// LogRepository handles log entry persistence
type LogRepository interface {
	AddLogEntry(ctx context.Context, entry *LogEntry) error
	GetLogEntry(ctx context.Context, id uint) (*LogEntry, error)
	GetLogsBetween(ctx context.Context, userID int64, from, to time.Time) ([]LogEntry, error)
	UpdateLogEntry(ctx context.Context, id uint, weight, kcal *float64) error
	DeleteLogEntry(ctx context.Context, id uint) error
	DeleteLogsBetween(ctx context.Context, userID int64, from, to time.Time) error
	GetLastLogTime(ctx context.Context, userID int64) (time.Time, error)
}

// Repository is the full persistence contract
type Repository interface {
	UserRepository
	ProductRepository
	MealRepository
	LogRepository

	// Transaction runs fn against a repository bound to a single transaction
	Transaction(ctx context.Context, fn func(tx Repository) error) error
}

// ParsingOracle turns free text into structured food items. It never fails:
// an unusable answer yields an empty slice.
type ParsingOracle interface {
	ParseFood(ctx context.Context, text string) []ParsedItem
}

// CalorieOracle estimates kcal per 100 g for a product name
type CalorieOracle interface {
	EstimateKcal(ctx context.Context, productName string) (int, bool)
}

// DocumentSync appends text to an external document
type DocumentSync interface {
	Append(ctx context.Context, documentID, text string) error
}
