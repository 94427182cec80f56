package services

import (
	"context"
	"errors"
	"time"

	"github.com/vladimiradmaev/calorie-helper/internal/domain"
	apperrors "github.com/vladimiradmaev/calorie-helper/internal/errors"
	"github.com/vladimiradmaev/calorie-helper/internal/logger"
	"github.com/vladimiradmaev/calorie-helper/internal/report"
	"github.com/vladimiradmaev/calorie-helper/internal/utils"
)

// SyncService copies daily reports into the external document
type SyncService struct {
	repo       domain.Repository
	docs       domain.DocumentSync
	documentID string
	loc        *time.Location
	timeout    time.Duration
	now        func() time.Time
}

const defaultDocsTimeout = 30 * time.Second

// NewSyncService creates a sync service. docs may be nil when no
// credentials are configured. Every document append is bounded by timeout.
func NewSyncService(repo domain.Repository, docs domain.DocumentSync, documentID string, loc *time.Location, timeout time.Duration) *SyncService {
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = defaultDocsTimeout
	}
	return &SyncService{repo: repo, docs: docs, documentID: documentID, loc: loc, timeout: timeout, now: time.Now}
}

// Enabled reports whether a document is configured
func (s *SyncService) Enabled() bool {
	return s.documentID != "" && s.docs != nil
}

// DefaultDay is the day of the user's latest entry, or today when the user
// has none
func (s *SyncService) DefaultDay(ctx context.Context, userID int64) (time.Time, error) {
	last, err := s.repo.GetLastLogTime(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.now().In(s.loc), nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return last.In(s.loc), nil
}

// SyncUserDay appends the user's report for day. It returns false when the
// day is empty or the document could not be updated.
func (s *SyncService) SyncUserDay(ctx context.Context, userID int64, day time.Time) (bool, error) {
	if !s.Enabled() {
		return false, apperrors.ErrNoDocument
	}

	start, end := utils.DayBounds(day, s.loc)
	rows, err := s.repo.GetLogsBetween(ctx, userID, start, end)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		logger.Info("Nothing to sync", "user_id", userID, "day", start.Format("2006-01-02"))
		return false, nil
	}

	appendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.docs.Append(appendCtx, s.documentID, report.Render(start, rows, s.loc)); err != nil {
		logger.Error("Document sync failed", "user_id", userID, "error", err)
		return false, nil
	}
	logger.Info("Document sync successful", "user_id", userID, "day", start.Format("2006-01-02"))
	return true, nil
}

// SyncAllUsers appends the day's report of every user. A failure for one
// user does not stop the others.
func (s *SyncService) SyncAllUsers(ctx context.Context, day time.Time) int {
	if !s.Enabled() {
		logger.Info("Document id not set, skipping sync")
		return 0
	}

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		logger.Error("Failed to list users for sync", "error", err)
		return 0
	}

	synced := 0
	for _, u := range users {
		if ctx.Err() != nil {
			break
		}
		ok, err := s.SyncUserDay(ctx, u.ID, day)
		if err != nil {
			logger.Error("Daily sync failed", "user_id", u.ID, "error", err)
			continue
		}
		if ok {
			synced++
		}
	}
	return synced
}
