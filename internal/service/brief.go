package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"marketbrief/internal/domain/models"
	"marketbrief/internal/domain/repositories"
	"marketbrief/internal/market"
)

// BriefData is the raw material for a daily briefing. Errors lists the
// fan-out legs that fell back to demo data, so callers can tell a live
// brief from a degraded one.
type BriefData struct {
	Profile    *models.Profile
	TopGainers []models.Mover
	TopLosers  []models.Mover
	Headlines  []models.Headline
	Watchlist  []models.WatchlistItem
	Errors     []string
}

// BriefOptions bounds the fan-out. Zero values take the defaults.
type BriefOptions struct {
	NewsLimit   int
	MoversLimit int
}

// BriefService assembles and formats the daily market briefing.
type BriefService struct {
	source        market.Source
	profileRepo   repositories.ProfileRepository
	watchlistRepo repositories.WatchlistRepository
	logger        *slog.Logger
}

// NewBriefService creates a new brief service.
func NewBriefService(
	source market.Source,
	profileRepo repositories.ProfileRepository,
	watchlistRepo repositories.WatchlistRepository,
	logger *slog.Logger,
) *BriefService {
	return &BriefService{
		source:        source,
		profileRepo:   profileRepo,
		watchlistRepo: watchlistRepo,
		logger:        logger,
	}
}

// Build fans out to gainers, losers and general news concurrently, then
// attaches the user's watchlist and profile. Partial failures degrade to
// whatever data came back; they never fail the brief.
func (s *BriefService) Build(ctx context.Context, userID string, opts BriefOptions) (*BriefData, error) {
	newsLimit := opts.NewsLimit
	if newsLimit == 0 {
		newsLimit = 3
	}
	moversLimit := opts.MoversLimit
	if moversLimit == 0 {
		moversLimit = 5
	}
	if moversLimit > 10 {
		moversLimit = 10
	}
	if newsLimit > 10 {
		newsLimit = 10
	}

	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = models.DefaultProfile(userID)
	}

	data := &BriefData{Profile: profile}

	var gainers, losers *market.MoversResult
	var news *market.NewsResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		gainers, err = s.source.Movers(gctx, "gainers", moversLimit)
		return err
	})
	g.Go(func() error {
		var err error
		losers, err = s.source.Movers(gctx, "losers", moversLimit)
		return err
	})
	g.Go(func() error {
		var err error
		news, err = s.source.News(gctx, "", newsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if gainers.Fallback {
		data.Errors = append(data.Errors, "gainers")
	} else {
		data.TopGainers = gainers.Movers
	}
	if losers.Fallback {
		data.Errors = append(data.Errors, "losers")
	} else {
		data.TopLosers = losers.Movers
	}
	if news.Fallback {
		data.Errors = append(data.Errors, "news")
	} else {
		data.Headlines = news.Headlines
	}

	watchlist, err := s.watchlistRepo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	data.Watchlist = watchlist

	if len(data.Errors) > 0 {
		s.logger.Warn("brief built with degraded data", "user_id", userID, "failed", data.Errors)
	}
	return data, nil
}

// FormatBrief renders the briefing as one speakable string. briefStyle
// picks the layout; beginner experience appends an explanatory footnote.
func FormatBrief(profile *models.Profile, data *BriefData) string {
	experience := models.ExperienceIntermediate
	briefStyle := models.BriefStyleBullet
	if profile != nil {
		if profile.Experience != "" {
			experience = profile.Experience
		}
		if profile.BriefStyle != "" {
			briefStyle = profile.BriefStyle
		}
	}
	explain := experience == models.ExperienceBeginner

	gainText := moverTexts(data.TopGainers, 3)
	loseText := moverTexts(data.TopLosers, 3)
	newsText := headlineTexts(data.Headlines, 2)

	labeled := func(parts []string, label string) string {
		if len(parts) == 0 {
			return label + ": none"
		}
		return label + ": " + strings.Join(parts, ", ")
	}
	newsLine := "News: none"
	if len(newsText) > 0 {
		newsLine = "News: " + strings.Join(newsText, " | ")
	}

	switch briefStyle {
	case models.BriefStyleNumbersFirst:
		parts := []string{
			labeled(gainText, "Top gainers"),
			labeled(loseText, "Top losers"),
			newsLine,
		}
		if explain {
			parts = append(parts, "Note: % change vs prior close; headlines are recent market items.")
		}
		return strings.Join(parts, "; ")

	case models.BriefStyleNarrative:
		var lines []string
		if len(gainText) > 0 || len(loseText) > 0 {
			lines = append(lines, fmt.Sprintf("Markets mixed: gainers (%s), losers (%s).",
				orNone(gainText), orNone(loseText)))
		}
		if len(newsText) > 0 {
			lines = append(lines, "Headlines: "+strings.Join(newsText, " | "))
		}
		if explain {
			lines = append(lines, "Note: % change is vs prior close; headlines summarize recent moves.")
		}
		return strings.Join(lines, " ")

	default:
		bullets := []string{
			labeled(gainText, "Top gainers"),
			labeled(loseText, "Top losers"),
			newsLine,
		}
		if explain {
			bullets = append(bullets, "Note: % change is vs prior close; headlines summarize recent moves.")
		}
		return strings.Join(bullets, " • ")
	}
}

func moverTexts(movers []models.Mover, max int) []string {
	if len(movers) > max {
		movers = movers[:max]
	}
	texts := make([]string, 0, len(movers))
	for _, m := range movers {
		texts = append(texts, fmt.Sprintf("%s %.2f%%", m.Ticker, m.ChangePercent))
	}
	return texts
}

func headlineTexts(headlines []models.Headline, max int) []string {
	if len(headlines) > max {
		headlines = headlines[:max]
	}
	texts := make([]string, 0, len(headlines))
	for _, h := range headlines {
		texts = append(texts, h.Title)
	}
	return texts
}

func orNone(parts []string) string {
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
