package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"marketbrief/internal/domain"
	"marketbrief/internal/domain/models"
	"marketbrief/internal/domain/repositories"
	"marketbrief/internal/ticker"
)

// WatchlistService manages per-user tracked tickers.
type WatchlistService struct {
	watchlistRepo repositories.WatchlistRepository
	userRepo      repositories.UserRepository
	logger        *slog.Logger
}

// NewWatchlistService creates a new watchlist service.
func NewWatchlistService(
	watchlistRepo repositories.WatchlistRepository,
	userRepo repositories.UserRepository,
	logger *slog.Logger,
) *WatchlistService {
	return &WatchlistService{
		watchlistRepo: watchlistRepo,
		userRepo:      userRepo,
		logger:        logger,
	}
}

// List returns the user's watchlist, newest first.
func (s *WatchlistService) List(ctx context.Context, userID string) ([]models.WatchlistItem, error) {
	return s.watchlistRepo.List(ctx, userID)
}

// Add upserts a ticker onto the watchlist. Re-adding updates the reason
// instead of duplicating the row.
func (s *WatchlistService) Add(ctx context.Context, userID, rawTicker string, reason *string) (*models.WatchlistItem, error) {
	symbol := ticker.Coerce(rawTicker)
	if !ticker.IsValid(symbol) {
		return nil, fmt.Errorf("%w: invalid ticker %q", domain.ErrValidation, rawTicker)
	}
	if err := s.userRepo.Ensure(ctx, userID); err != nil {
		return nil, err
	}

	item := &models.WatchlistItem{
		UserID:    userID,
		Ticker:    symbol,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := s.watchlistRepo.Upsert(ctx, item); err != nil {
		return nil, err
	}
	s.logger.Info("watchlist add", "user_id", userID, "ticker", symbol)
	return item, nil
}

// Remove deletes one ticker. Returns true when a row existed.
func (s *WatchlistService) Remove(ctx context.Context, userID, rawTicker string) (bool, error) {
	symbol := ticker.Normalize(rawTicker)
	if symbol == "" {
		return false, fmt.Errorf("%w: ticker required", domain.ErrValidation)
	}
	removed, err := s.watchlistRepo.Remove(ctx, userID, symbol)
	if err != nil {
		return false, err
	}
	if removed {
		s.logger.Info("watchlist remove", "user_id", userID, "ticker", symbol)
	}
	return removed, nil
}

// Clear deletes every item for the user and returns the count removed.
func (s *WatchlistService) Clear(ctx context.Context, userID string) (int64, error) {
	count, err := s.watchlistRepo.Clear(ctx, userID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("watchlist cleared", "user_id", userID, "removed", count)
	}
	return count, nil
}
