package domain

import (
	"time"
)

// User represents a telegram user in the system
type User struct {
	ID        int64 `gorm:"primaryKey;autoIncrement:false"` // Telegram user ID
	CreatedAt time.Time
}

// Product is a catalog entry with a known calorie density
type Product struct {
	ID           uint    `gorm:"primaryKey"`
	Name         string  `gorm:"uniqueIndex;not null"` // normalized: lowercased, trimmed
	KcalPer100   float64 `gorm:"column:kcal_per_100g"`
	IsVerified   bool    `gorm:"default:false"`
	LastVerified time.Time
}

// Meal groups log entries sharing one creation timestamp
type Meal struct {
	ID                  string `gorm:"primaryKey;type:varchar(36)"`
	UserID              int64  `gorm:"index:idx_meals_user_created,priority:1"`
	LastReportMessageID int
	CreatedAt           time.Time `gorm:"autoCreateTime:false;index:idx_meals_user_created,priority:2"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime:false"`
}

// LogEntry is one eaten food item
type LogEntry struct {
	ID          uint      `gorm:"primaryKey"`
	UserID      int64     `gorm:"index:idx_log_entries_user_ts,priority:1"`
	MealID      string    `gorm:"type:varchar(36);index"`
	Timestamp   time.Time `gorm:"column:logged_at;index:idx_log_entries_user_ts,priority:2"`
	ProductName string
	WeightG     float64
	KcalTotal   float64
}

// KcalMode tells how a manually supplied calorie value must be read
type KcalMode string

const (
	KcalModeNone   KcalMode = ""
	KcalModeTotal  KcalMode = "total"
	KcalModePer100 KcalMode = "per_100"
)

// ParsedItem is one record produced by the parsing oracle
type ParsedItem struct {
	Name       string
	Weight     float64
	ManualKcal *float64
	KcalMode   KcalMode
	Date       string // YYYY-MM-DD, empty when absent
	Time       string // HH:MM, empty when absent
}

// PendingProduct is a catalog candidate waiting for user confirmation
type PendingProduct struct {
	Name       string  `json:"name"`
	KcalPer100 float64 `json:"kcal"`
}

// PendingKcal describes an item whose calories could not be resolved
type PendingKcal struct {
	Name       string    `json:"name"`
	Weight     float64   `json:"weight"`
	MealID     string    `json:"meal_id"`
	Timestamp  time.Time `json:"timestamp"`
	Historical bool      `json:"historical"`
	Text       string    `json:"text"`
}

// KcalFromPer100 returns total calories for weight grams of a product
func KcalFromPer100(weight, per100 float64) float64 {
	return weight / 100 * per100
}

// Per100FromTotal derives calorie density from a total. With zero weight the
// total itself is returned.
func Per100FromTotal(total, weight float64) float64 {
	if weight > 0 {
		return total / weight * 100
	}
	return total
}
