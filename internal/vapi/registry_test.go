package vapi

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"marketbrief/internal/domain"
	"marketbrief/internal/domain/models"
	"marketbrief/internal/market"
	"marketbrief/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// stubSource returns canned market data.
type stubSource struct {
	quote     *market.QuoteResult
	quoteErr  error
	movers    *market.MoversResult
	moversErr error
	news      *market.NewsResult
	newsErr   error

	lastDirection string
	lastLimit     int
}

func (s *stubSource) Quote(ctx context.Context, symbol string) (*market.QuoteResult, error) {
	if s.quoteErr != nil {
		return nil, s.quoteErr
	}
	return s.quote, nil
}

func (s *stubSource) Movers(ctx context.Context, direction string, limit int) (*market.MoversResult, error) {
	s.lastDirection = direction
	s.lastLimit = limit
	if s.moversErr != nil {
		return nil, s.moversErr
	}
	return s.movers, nil
}

func (s *stubSource) News(ctx context.Context, ticker string, limit int) (*market.NewsResult, error) {
	if s.newsErr != nil {
		return nil, s.newsErr
	}
	return s.news, nil
}

type stubUserRepo struct{}

func (s *stubUserRepo) EnsureDemoUser(ctx context.Context) (string, error) { return "demo-user", nil }
func (s *stubUserRepo) Ensure(ctx context.Context, userID string) error    { return nil }

type stubProfileRepo struct {
	profile *models.Profile
}

func (s *stubProfileRepo) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	return s.profile, nil
}

func (s *stubProfileRepo) Create(ctx context.Context, profile *models.Profile) error {
	s.profile = profile
	return nil
}

func (s *stubProfileRepo) Update(ctx context.Context, profile *models.Profile) error {
	s.profile = profile
	return nil
}

type stubWatchlistRepo struct {
	items map[string][]models.WatchlistItem
}

func newStubWatchlistRepo() *stubWatchlistRepo {
	return &stubWatchlistRepo{items: map[string][]models.WatchlistItem{}}
}

func (s *stubWatchlistRepo) List(ctx context.Context, userID string) ([]models.WatchlistItem, error) {
	return s.items[userID], nil
}

func (s *stubWatchlistRepo) Upsert(ctx context.Context, item *models.WatchlistItem) error {
	for i, existing := range s.items[item.UserID] {
		if existing.Ticker == item.Ticker {
			s.items[item.UserID][i] = *item
			return nil
		}
	}
	s.items[item.UserID] = append(s.items[item.UserID], *item)
	return nil
}

func (s *stubWatchlistRepo) Remove(ctx context.Context, userID, ticker string) (bool, error) {
	for i, existing := range s.items[userID] {
		if existing.Ticker == ticker {
			s.items[userID] = append(s.items[userID][:i], s.items[userID][i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *stubWatchlistRepo) Clear(ctx context.Context, userID string) (int64, error) {
	count := int64(len(s.items[userID]))
	delete(s.items, userID)
	return count, nil
}

// stubPendingRepo keys records the way the postgres repository does:
// exact (conversation, tool, ticker), with an empty ticker scanning the
// prefix.
type stubPendingRepo struct {
	records map[string]*models.PendingConfirmation
}

func newStubPendingRepo() *stubPendingRepo {
	return &stubPendingRepo{records: map[string]*models.PendingConfirmation{}}
}

func pendingKey(conversationID, toolName, ticker string) string {
	return conversationID + "|" + toolName + "|" + ticker
}

func (s *stubPendingRepo) Upsert(ctx context.Context, pending *models.PendingConfirmation) error {
	s.records[pendingKey(pending.ConversationID, pending.ToolName, pending.Ticker)] = pending
	return nil
}

func (s *stubPendingRepo) Get(ctx context.Context, conversationID, toolName, ticker string) (*models.PendingConfirmation, error) {
	if ticker != "" {
		rec := s.records[pendingKey(conversationID, toolName, ticker)]
		if rec != nil && time.Now().After(rec.ExpiresAt) {
			return nil, nil
		}
		return rec, nil
	}
	prefix := conversationID + "|" + toolName + "|"
	var best *models.PendingConfirmation
	for key, rec := range s.records {
		if !strings.HasPrefix(key, prefix) || time.Now().After(rec.ExpiresAt) {
			continue
		}
		if best == nil || rec.ExpiresAt.After(best.ExpiresAt) {
			best = rec
		}
	}
	return best, nil
}

func (s *stubPendingRepo) Clear(ctx context.Context, conversationID, toolName, ticker string) error {
	delete(s.records, pendingKey(conversationID, toolName, ticker))
	return nil
}

type stubToolCallRepo struct {
	mu   sync.Mutex
	rows map[string]*models.ProcessedToolCall
}

func newStubToolCallRepo() *stubToolCallRepo {
	return &stubToolCallRepo{rows: map[string]*models.ProcessedToolCall{}}
}

func (s *stubToolCallRepo) Start(ctx context.Context, call *models.ProcessedToolCall) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[call.ToolCallID]; exists {
		return false, nil
	}
	s.rows[call.ToolCallID] = call
	return true, nil
}

func (s *stubToolCallRepo) Succeed(ctx context.Context, toolCallID string, result models.JSONMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[toolCallID]; ok && row.Status == models.ToolCallProcessing {
		row.Status = models.ToolCallSucceeded
		row.ResultJSON = result
	}
	return nil
}

func (s *stubToolCallRepo) Fail(ctx context.Context, toolCallID string, result models.JSONMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[toolCallID]; ok && row.Status == models.ToolCallProcessing {
		row.Status = models.ToolCallFailed
		row.ErrorJSON = result
	}
	return nil
}

func (s *stubToolCallRepo) Get(ctx context.Context, toolCallID string) (*models.ProcessedToolCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[toolCallID]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

type registryFixture struct {
	registry *Registry
	source   *stubSource
	pending  *stubPendingRepo
	wlRepo   *stubWatchlistRepo
}

func newRegistryFixture(source *stubSource) *registryFixture {
	logger := testLogger()
	pending := newStubPendingRepo()
	wlRepo := newStubWatchlistRepo()
	profileRepo := &stubProfileRepo{}
	userRepo := &stubUserRepo{}

	watchlist := service.NewWatchlistService(wlRepo, userRepo, logger)
	profiles := service.NewProfileService(profileRepo, userRepo, logger)
	brief := service.NewBriefService(source, profileRepo, wlRepo, logger)
	confirmations := NewConfirmationStore(pending, logger)

	return &registryFixture{
		registry: NewRegistry(source, brief, watchlist, profiles, confirmations, logger),
		source:   source,
		pending:  pending,
		wlRepo:   wlRepo,
	}
}

func TestGetQuote(t *testing.T) {
	f := newRegistryFixture(&stubSource{
		quote: &market.QuoteResult{
			Quote: models.Quote{Ticker: "AAPL", Price: 189.5, Change: 1.25, ChangePercent: 0.66},
		},
	})
	call := Context{UserID: "user-1", ToolCallID: "tc-1"}

	resp := f.registry.Dispatch(context.Background(), "get_quote", models.JSONMap{"ticker": "aapl"}, call)
	if !resp.OK {
		t.Fatalf("expected ok, got error %q", resp.Err)
	}
	got := Format(resp)
	want := "AAPL is trading at $189.50, +1.25 (+0.66%)"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestGetQuoteMissingTicker(t *testing.T) {
	f := newRegistryFixture(&stubSource{})

	resp := f.registry.Dispatch(context.Background(), "get_quote", models.JSONMap{}, Context{})
	if resp.OK {
		t.Fatal("expected error response")
	}
	if resp.Err != "Please provide a ticker (spell it out letter by letter)." {
		t.Errorf("unexpected prompt: %q", resp.Err)
	}
}

func TestGetQuoteMalformedTickerParksConfirmation(t *testing.T) {
	f := newRegistryFixture(&stubSource{})
	call := Context{UserID: "user-1", ConversationID: "conv-1"}

	resp := f.registry.Dispatch(context.Background(), "get_quote", models.JSONMap{"ticker": "APPL3X"}, call)
	if resp.OK {
		t.Fatal("expected confirmation prompt")
	}
	if resp.Err != "Did you mean ticker A-P-P-L-3-X? say yes or no." {
		t.Errorf("unexpected prompt: %q", resp.Err)
	}
	pending, _ := f.pending.Get(context.Background(), "conv-1", "get_quote", "")
	if pending == nil {
		t.Fatal("expected a parked confirmation")
	}
	if pending.Ticker != "APPL3X" || pending.UserID != "user-1" {
		t.Errorf("unexpected parked record: %+v", pending)
	}
}

func TestGetQuoteNotFound(t *testing.T) {
	f := newRegistryFixture(&stubSource{
		quoteErr: fmt.Errorf("symbol lookup: %w", domain.ErrNotFound),
	})

	resp := f.registry.Dispatch(context.Background(), "get_quote", models.JSONMap{"ticker": "ZZZZZ"}, Context{})
	if resp.OK || resp.Err != "Quote not found" {
		t.Errorf("expected quote-not-found, got ok=%v err=%q", resp.OK, resp.Err)
	}
}

func TestGetQuoteFallbackSpeaksError(t *testing.T) {
	f := newRegistryFixture(&stubSource{
		quote: &market.QuoteResult{
			Quote:    models.Quote{Ticker: "AAPL", Price: 123.4},
			Fallback: true,
			Err:      "Quote fetch failed",
		},
	})

	resp := f.registry.Dispatch(context.Background(), "get_quote", models.JSONMap{"ticker": "AAPL"}, Context{})
	if resp.OK {
		t.Fatal("fallback result must not be ok")
	}
	if got := Format(resp); got != "Quote fetch failed" {
		t.Errorf("expected upstream error spoken, got %q", got)
	}
}

func TestGetMoversDefaults(t *testing.T) {
	f := newRegistryFixture(&stubSource{
		movers: &market.MoversResult{Direction: "gainers", Movers: []models.Mover{{Ticker: "NVDA", ChangePercent: 3.1}}},
	})

	resp := f.registry.Dispatch(context.Background(), "get_movers", models.JSONMap{}, Context{})
	if !resp.OK {
		t.Fatalf("expected ok, got %q", resp.Err)
	}
	if f.source.lastDirection != "gainers" || f.source.lastLimit != 5 {
		t.Errorf("expected gainers/5 defaults, got %s/%d", f.source.lastDirection, f.source.lastLimit)
	}
}

func TestGetMoversExplicitLosers(t *testing.T) {
	f := newRegistryFixture(&stubSource{
		movers: &market.MoversResult{Direction: "losers"},
	})

	args := models.JSONMap{"direction": "losers", "limit": float64(3)}
	resp := f.registry.Dispatch(context.Background(), "get_movers", args, Context{})
	if !resp.OK {
		t.Fatalf("expected ok, got %q", resp.Err)
	}
	if f.source.lastDirection != "losers" || f.source.lastLimit != 3 {
		t.Errorf("expected losers/3, got %s/%d", f.source.lastDirection, f.source.lastLimit)
	}
}

func TestGetMoversRejectsNonNumericLimit(t *testing.T) {
	f := newRegistryFixture(&stubSource{})

	resp := f.registry.Dispatch(context.Background(), "get_movers", models.JSONMap{"limit": "five"}, Context{})
	if resp.OK || resp.Err != "Limit must be a number." {
		t.Errorf("expected limit error, got ok=%v err=%q", resp.OK, resp.Err)
	}
}

func TestGetNewsMarketWide(t *testing.T) {
	f := newRegistryFixture(&stubSource{
		news: &market.NewsResult{Ticker: "MARKET", Headlines: []models.Headline{{Title: "Stocks rally"}}},
	})

	// No ticker: general market news, no prompt.
	resp := f.registry.Dispatch(context.Background(), "get_news", models.JSONMap{}, Context{})
	if !resp.OK {
		t.Fatalf("expected ok, got %q", resp.Err)
	}
	payload, ok := resp.Data.(NewsPayload)
	if !ok || payload.Ticker != "MARKET" {
		t.Errorf("unexpected payload: %+v", resp.Data)
	}
}

func TestAddToWatchlistRequiresConfirmation(t *testing.T) {
	f := newRegistryFixture(&stubSource{})
	call := Context{UserID: "user-1", ConversationID: "conv-1"}

	resp := f.registry.Dispatch(context.Background(), "add_to_watchlist", models.JSONMap{"ticker": "AAPL"}, call)
	if resp.OK {
		t.Fatal("expected confirmation prompt before mutation")
	}
	want := "Confirm add AAPL? Say yes to proceed with A-A-P-L or no to cancel."
	if resp.Err != want {
		t.Errorf("expected %q, got %q", want, resp.Err)
	}
	if items, _ := f.wlRepo.List(context.Background(), "user-1"); len(items) != 0 {
		t.Error("mutation must not run before confirmation")
	}

	// Confirmed: mutation runs.
	resp = f.registry.Dispatch(context.Background(), "add_to_watchlist",
		models.JSONMap{"ticker": "AAPL", "confirm": true}, call)
	if !resp.OK {
		t.Fatalf("expected ok after confirm, got %q", resp.Err)
	}
	if got := Format(resp); got != "Added AAPL to watchlist" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestAddToWatchlistWithoutSession(t *testing.T) {
	f := newRegistryFixture(&stubSource{})

	resp := f.registry.Dispatch(context.Background(), "add_to_watchlist",
		models.JSONMap{"ticker": "AAPL", "confirm": true}, Context{})
	if resp.OK {
		t.Fatal("expected error without a user")
	}
	if resp.Err != "I couldn't verify your session. Please sign in and try again." {
		t.Errorf("unexpected message: %q", resp.Err)
	}
}

func TestRemoveFromWatchlistAllSynonym(t *testing.T) {
	f := newRegistryFixture(&stubSource{})
	call := Context{UserID: "user-1"}
	ctx := context.Background()

	_ = f.wlRepo.Upsert(ctx, &models.WatchlistItem{UserID: "user-1", Ticker: "AAPL"})
	_ = f.wlRepo.Upsert(ctx, &models.WatchlistItem{UserID: "user-1", Ticker: "TSLA"})

	resp := f.registry.Dispatch(ctx, "remove_from_watchlist", models.JSONMap{"ticker": "everything"}, call)
	if !resp.OK {
		t.Fatalf("expected ok, got %q", resp.Err)
	}
	if got := Format(resp); got != "Removed all from watchlist" {
		t.Errorf("unexpected result: %q", got)
	}
	if items, _ := f.wlRepo.List(ctx, "user-1"); len(items) != 0 {
		t.Error("expected an empty watchlist")
	}

	// Clearing an already empty list reports "none".
	resp = f.registry.Dispatch(ctx, "remove_from_watchlist", models.JSONMap{"all": true}, call)
	if got := Format(resp); got != "Removed none from watchlist" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestRemoveFromWatchlistNotPresent(t *testing.T) {
	f := newRegistryFixture(&stubSource{})
	call := Context{UserID: "user-1"}

	resp := f.registry.Dispatch(context.Background(), "remove_from_watchlist",
		models.JSONMap{"ticker": "TSLA", "confirm": true}, call)
	if resp.OK {
		t.Fatal("expected error for absent ticker")
	}
	if resp.Err != "TSLA is not on your watchlist." {
		t.Errorf("unexpected message: %q", resp.Err)
	}
}

func TestGetTodayBriefDegraded(t *testing.T) {
	f := newRegistryFixture(&stubSource{
		movers: &market.MoversResult{Direction: "gainers", Fallback: true, Err: "upstream down"},
		news:   &market.NewsResult{Ticker: "MARKET", Fallback: true, Err: "upstream down"},
	})
	call := Context{UserID: "user-1"}

	resp := f.registry.Dispatch(context.Background(), "get_today_brief", models.JSONMap{}, call)
	if resp.OK {
		t.Fatal("degraded brief must not be ok")
	}
	if got := Format(resp); got != "Unable to build brief from live data" {
		t.Errorf("unexpected spoken result: %q", got)
	}
	payload, ok := resp.Data.(BriefPayload)
	if !ok {
		t.Fatalf("expected BriefPayload, got %T", resp.Data)
	}
	if payload.Summary == "" {
		t.Error("degraded brief still carries a summary for the data payload")
	}
}

func TestGetTodayBriefLive(t *testing.T) {
	f := newRegistryFixture(&stubSource{
		movers: &market.MoversResult{Direction: "gainers", Movers: []models.Mover{
			{Ticker: "NVDA", ChangePercent: 2.4}, {Ticker: "AAPL", ChangePercent: 1.1},
		}},
		news: &market.NewsResult{Ticker: "MARKET", Headlines: []models.Headline{{Title: "Fed holds rates"}}},
	})
	call := Context{UserID: "user-1"}

	resp := f.registry.Dispatch(context.Background(), "get_today_brief", models.JSONMap{}, call)
	if !resp.OK {
		t.Fatalf("expected ok, got %q", resp.Err)
	}
	got := Format(resp)
	if !strings.Contains(got, "NVDA") || !strings.Contains(got, "Fed holds rates") {
		t.Errorf("summary missing data: %q", got)
	}
	if strings.Contains(got, "\n") {
		t.Error("spoken result must be a single line")
	}
}

func TestGetUserProfileDefaults(t *testing.T) {
	f := newRegistryFixture(&stubSource{})

	resp := f.registry.Dispatch(context.Background(), "get_user_profile", models.JSONMap{}, Context{UserID: "user-1"})
	if !resp.OK {
		t.Fatalf("expected ok, got %q", resp.Err)
	}
	payload, ok := resp.Data.(ProfilePayload)
	if !ok {
		t.Fatalf("expected ProfilePayload, got %T", resp.Data)
	}
	if payload.BriefStyle != models.BriefStyleBullet {
		t.Errorf("expected default style, got %q", payload.BriefStyle)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	f := newRegistryFixture(&stubSource{})

	resp := f.registry.Dispatch(context.Background(), "launch_rocket", models.JSONMap{}, Context{})
	if resp.OK || resp.Err != "Unknown tool: launch_rocket" {
		t.Errorf("unexpected response: ok=%v err=%q", resp.OK, resp.Err)
	}
	if f.registry.Known("launch_rocket") {
		t.Error("unknown tool reported as known")
	}
	if !f.registry.Known("get_quote") {
		t.Error("canonical tool reported as unknown")
	}
}
