package vapi

import (
	"encoding/json"
	"strings"
	"testing"

	"marketbrief/internal/domain/models"
)

func TestFormatQuote(t *testing.T) {
	tests := []struct {
		name  string
		quote models.Quote
		want  string
	}{
		{
			name:  "gain",
			quote: models.Quote{Ticker: "AAPL", Price: 189.5, Change: 1.25, ChangePercent: 0.66},
			want:  "AAPL is trading at $189.50, +1.25 (+0.66%)",
		},
		{
			name:  "loss",
			quote: models.Quote{Ticker: "TSLA", Price: 244.4, Change: -3.1, ChangePercent: -1.25},
			want:  "TSLA is trading at $244.40, -3.1 (-1.25%)",
		},
		{
			name:  "flat",
			quote: models.Quote{Ticker: "MSFT", Price: 400, Change: 0, ChangePercent: 0},
			want:  "MSFT is trading at $400.00, +0 (+0.00%)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(Response{OK: true, Data: QuotePayload{tt.quote}})
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatWatchlist(t *testing.T) {
	empty := Format(Response{OK: true, Data: WatchlistPayload{}})
	if empty != "Watchlist is empty" {
		t.Errorf("empty list: got %q", empty)
	}

	got := Format(Response{OK: true, Data: WatchlistPayload{Items: []models.WatchlistItem{
		{Ticker: "AAPL"}, {Ticker: "TSLA"},
	}}})
	if got != "Watchlist: AAPL, TSLA" {
		t.Errorf("got %q", got)
	}
}

func TestFormatMutation(t *testing.T) {
	if got := Format(Response{OK: true, Data: MutationPayload{Added: "AAPL"}}); got != "Added AAPL to watchlist" {
		t.Errorf("added: got %q", got)
	}
	if got := Format(Response{OK: true, Data: MutationPayload{Removed: "all"}}); got != "Removed all from watchlist" {
		t.Errorf("removed: got %q", got)
	}
	if got := Format(Response{OK: true, Data: MutationPayload{}}); got != "No data available" {
		t.Errorf("neither: got %q", got)
	}
}

func TestFormatMessage(t *testing.T) {
	if got := Format(Response{OK: true, Data: MessagePayload{Text: "Okay, cancelled."}}); got != "Okay, cancelled." {
		t.Errorf("got %q", got)
	}
}

func TestFormatErrors(t *testing.T) {
	if got := Format(errorResponse("Quote not found")); got != "Quote not found" {
		t.Errorf("got %q", got)
	}
	if got := Format(Response{}); got != "An error occurred" {
		t.Errorf("blank error: got %q", got)
	}
	if got := Format(Response{OK: true}); got != "No data available" {
		t.Errorf("ok without data: got %q", got)
	}
	// Fallback data never reaches the spoken reply; the error text does.
	got := Format(Response{Err: "Quote fetch failed", Data: QuotePayload{models.Quote{Ticker: "AAPL", Price: 120}}})
	if got != "Quote fetch failed" {
		t.Errorf("fallback: got %q", got)
	}
}

func TestFormatBriefSummary(t *testing.T) {
	summary := "Watchlist: AAPL • Gainers: NVDA 2.40% • Headlines: Fed holds rates"
	got := Format(Response{OK: true, Data: BriefPayload{Summary: summary}})
	if got != summary {
		t.Errorf("got %q, want summary verbatim", got)
	}
}

func TestFormatSingleLine(t *testing.T) {
	resp := Response{OK: true, Data: BriefPayload{Summary: "line one\nline two\t tabbed"}}
	got := Format(resp)
	if strings.ContainsAny(got, "\n\t") {
		t.Errorf("result contains raw whitespace: %q", got)
	}
	if got != "line one line two tabbed" {
		t.Errorf("got %q", got)
	}
}

func TestFormatGenericJSON(t *testing.T) {
	got := Format(Response{OK: true, Data: GenericPayload{Data: models.JSONMap{"answer": float64(42)}}})
	if got != `{"answer":42}` {
		t.Errorf("got %q", got)
	}
}

func TestEnvelopeWireShape(t *testing.T) {
	env := Wrap("tc-1", Response{OK: true, Data: MutationPayload{Added: "AAPL"}})
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"results":[{"toolCallId":"tc-1","result":"Added AAPL to watchlist"}]}`
	if string(raw) != want {
		t.Errorf("got %s, want %s", raw, want)
	}
}

func TestEnvelopeMapRoundTrip(t *testing.T) {
	env := WrapText("tc-1", "Watchlist is empty")
	stored := EnvelopeMap(env)

	restored, ok := EnvelopeFromMap(stored)
	if !ok {
		t.Fatal("expected the stored envelope to restore")
	}
	if restored.Results[0].ToolCallID != "tc-1" || restored.Results[0].Result != "Watchlist is empty" {
		t.Errorf("unexpected restore: %+v", restored.Results[0])
	}

	if _, ok := EnvelopeFromMap(models.JSONMap{"results": "bogus"}); ok {
		t.Error("malformed storage must not restore")
	}
	if _, ok := EnvelopeFromMap(models.JSONMap{}); ok {
		t.Error("empty storage must not restore")
	}
}
