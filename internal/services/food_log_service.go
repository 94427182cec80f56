package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladimiradmaev/calorie-helper/internal/catalog"
	"github.com/vladimiradmaev/calorie-helper/internal/domain"
	"github.com/vladimiradmaev/calorie-helper/internal/logger"
	"github.com/vladimiradmaev/calorie-helper/internal/report"
	"github.com/vladimiradmaev/calorie-helper/internal/utils"
)

const ingestInstrumentation = "calorie-helper/ingest"

// IngestRequest is one free-text submission
type IngestRequest struct {
	UserID int64
	Text   string
	// AppendMealID, when set, makes the live group extend that meal
	AppendMealID string
}

// DayReport is the rendered report of one calendar day
type DayReport struct {
	Day     time.Time
	Text    string
	MealIDs []string
}

// IngestResult describes what an ingestion wrote and what it still needs
type IngestResult struct {
	Parsed    bool
	Reports   []DayReport
	Pending   []domain.PendingProduct
	Suspended *domain.PendingKcal
}

// ResumeResult is the outcome of logging a suspended item
type ResumeResult struct {
	Report  DayReport
	Pending domain.PendingProduct
}

// FoodLogService turns free-text submissions into meals and log entries
type FoodLogService struct {
	repo     domain.Repository
	parser   domain.ParsingOracle
	resolver *CalorieResolver
	guard    OverwriteGuard
	loc      *time.Location
	now      func() time.Time
	newID    func() string
	logged   metric.Int64Counter
}

// NewFoodLogService creates the ingestion service. Days are computed in loc.
func NewFoodLogService(repo domain.Repository, parser domain.ParsingOracle, resolver *CalorieResolver, loc *time.Location) *FoodLogService {
	if loc == nil {
		loc = time.UTC
	}
	counter, err := otel.Meter(ingestInstrumentation).Int64Counter(
		"calorie_helper.entries.logged",
		metric.WithDescription("Food log entries written"),
	)
	if err != nil {
		logger.Warn("Failed to create entries counter", "error", err)
	}
	return &FoodLogService{
		repo:     repo,
		parser:   parser,
		resolver: resolver,
		loc:      loc,
		now:      time.Now,
		newID:    uuid.NewString,
		logged:   counter,
	}
}

// Ingest parses the text, groups the items into meals and stores every group
// in its own transaction. It stops at the first item whose calories cannot
// be resolved and returns it as Suspended.
func (s *FoodLogService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	ctx, span := otel.Tracer(ingestInstrumentation).Start(ctx, "food_log.ingest",
		trace.WithAttributes(attribute.Int64("user.id", req.UserID)))
	defer span.End()

	items := s.parser.ParseFood(ctx, req.Text)
	span.SetAttributes(attribute.Int("items.count", len(items)))
	if len(items) == 0 {
		return &IngestResult{}, nil
	}

	result := &IngestResult{Parsed: true}
	now := s.now()
	days := make(map[time.Time][]string)

	for _, group := range GroupItems(items, now, s.loc) {
		entries := make([]domain.LogEntry, 0, len(group.Items))
		var unresolved *domain.ParsedItem
		for i := range group.Items {
			item := group.Items[i]
			res, err := s.resolver.Resolve(ctx, item)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			if !res.Resolved {
				unresolved = &item
				break
			}
			if res.Pending != nil {
				result.Pending = MergePending(result.Pending, *res.Pending)
			}
			entries = append(entries, domain.LogEntry{
				UserID:      req.UserID,
				Timestamp:   group.Timestamp,
				ProductName: item.Name,
				WeightG:     item.Weight,
				KcalTotal:   res.KcalTotal,
			})
		}

		mealID, err := s.writeGroup(ctx, req, group, entries, now)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		if unresolved != nil {
			result.Suspended = &domain.PendingKcal{
				Name:       unresolved.Name,
				Weight:     unresolved.Weight,
				MealID:     mealID,
				Timestamp:  group.Timestamp,
				Historical: group.Historical,
				Text:       req.Text,
			}
			logger.WithContext(ctx).Info("Waiting for manual calories", "user_id", req.UserID, "product", unresolved.Name)
			return result, nil
		}

		day, _ := utils.DayBounds(group.Timestamp, s.loc)
		days[day] = append(days[day], mealID)
	}

	ordered := make([]time.Time, 0, len(days))
	for day := range days {
		ordered = append(ordered, day)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	for _, day := range ordered {
		rep, err := s.RenderDay(ctx, req.UserID, day)
		if err != nil {
			return nil, err
		}
		rep.MealIDs = days[day]
		result.Reports = append(result.Reports, rep)
	}
	return result, nil
}

func (s *FoodLogService) writeGroup(ctx context.Context, req IngestRequest, group MealGroup, entries []domain.LogEntry, now time.Time) (string, error) {
	var mealID string
	err := s.repo.Transaction(ctx, func(tx domain.Repository) error {
		if group.Historical {
			if err := s.guard.Clear(ctx, tx, req.UserID, group.Timestamp); err != nil {
				return err
			}
		} else if req.AppendMealID != "" {
			meal, err := tx.GetMeal(ctx, req.AppendMealID)
			switch {
			case err == nil && meal.UserID == req.UserID:
				if err := tx.TouchMeal(ctx, meal.ID, now); err != nil {
					return err
				}
				mealID = meal.ID
			case err != nil && !errors.Is(err, domain.ErrNotFound):
				return err
			}
		}

		// a group suspended on its first item gets its meal on resume
		if mealID == "" && len(entries) > 0 {
			meal := &domain.Meal{
				ID:        s.newID(),
				UserID:    req.UserID,
				CreatedAt: group.Timestamp,
				UpdatedAt: group.Timestamp,
			}
			if err := tx.CreateMeal(ctx, meal); err != nil {
				return err
			}
			mealID = meal.ID
		}

		for i := range entries {
			entries[i].MealID = mealID
			if err := tx.AddLogEntry(ctx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if s.logged != nil && len(entries) > 0 {
		s.logged.Add(ctx, int64(len(entries)))
	}
	return mealID, nil
}

// ResumeManualKcal logs a suspended item with the density the user supplied
func (s *FoodLogService) ResumeManualKcal(ctx context.Context, userID int64, pk domain.PendingKcal, per100 float64) (*ResumeResult, error) {
	entry := domain.LogEntry{
		UserID:      userID,
		Timestamp:   pk.Timestamp,
		ProductName: pk.Name,
		WeightG:     pk.Weight,
		KcalTotal:   domain.KcalFromPer100(pk.Weight, per100),
	}

	err := s.repo.Transaction(ctx, func(tx domain.Repository) error {
		meal, err := tx.GetMeal(ctx, pk.MealID)
		switch {
		case err == nil && meal.UserID == userID:
			entry.MealID = meal.ID
			if !pk.Historical {
				if err := tx.TouchMeal(ctx, meal.ID, s.now()); err != nil {
					return err
				}
			}
		case err == nil || errors.Is(err, domain.ErrNotFound):
			fresh := &domain.Meal{ID: s.newID(), UserID: userID, CreatedAt: pk.Timestamp, UpdatedAt: pk.Timestamp}
			if err := tx.CreateMeal(ctx, fresh); err != nil {
				return err
			}
			entry.MealID = fresh.ID
		default:
			return err
		}
		return tx.AddLogEntry(ctx, &entry)
	})
	if err != nil {
		return nil, err
	}
	if s.logged != nil {
		s.logged.Add(ctx, 1)
	}

	rep, err := s.RenderDay(ctx, userID, pk.Timestamp)
	if err != nil {
		return nil, err
	}
	rep.MealIDs = []string{entry.MealID}
	return &ResumeResult{
		Report:  rep,
		Pending: domain.PendingProduct{Name: catalog.Normalize(pk.Name), KcalPer100: per100},
	}, nil
}

// RenderDay renders the report of the calendar day containing t
func (s *FoodLogService) RenderDay(ctx context.Context, userID int64, t time.Time) (DayReport, error) {
	return renderDay(ctx, s.repo, s.loc, userID, t)
}

func renderDay(ctx context.Context, repo domain.LogRepository, loc *time.Location, userID int64, t time.Time) (DayReport, error) {
	start, end := utils.DayBounds(t, loc)
	rows, err := repo.GetLogsBetween(ctx, userID, start, end)
	if err != nil {
		return DayReport{}, err
	}
	return DayReport{Day: start, Text: report.Render(start, rows, loc)}, nil
}

// ClearDay deletes the user's entries and meals of the day containing t
func (s *FoodLogService) ClearDay(ctx context.Context, userID int64, t time.Time) error {
	start, end := utils.DayBounds(t, s.loc)
	return s.repo.Transaction(ctx, func(tx domain.Repository) error {
		return tx.DeleteLogsBetween(ctx, userID, start, end)
	})
}

// LastMeal returns the user's most recently updated meal as of now, or nil
func (s *FoodLogService) LastMeal(ctx context.Context, userID int64, now time.Time) (*domain.Meal, error) {
	meal, err := s.repo.GetLastMeal(ctx, userID, now)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return meal, err
}

// RecordReportMessage remembers the chat message that showed the meals
func (s *FoodLogService) RecordReportMessage(ctx context.Context, mealIDs []string, messageID int) error {
	for _, id := range mealIDs {
		if err := s.repo.UpdateMealReportMessage(ctx, id, messageID); err != nil {
			return err
		}
	}
	return nil
}

// MergePending adds p keeping one candidate per normalized name; the later
// value replaces the earlier one in place
func MergePending(list []domain.PendingProduct, p domain.PendingProduct) []domain.PendingProduct {
	p.Name = catalog.Normalize(p.Name)
	for i := range list {
		if list[i].Name == p.Name {
			list[i] = p
			return list
		}
	}
	return append(list, p)
}
