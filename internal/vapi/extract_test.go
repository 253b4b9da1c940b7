package vapi

import (
	"encoding/json"
	"testing"

	"marketbrief/internal/domain/models"
)

func mustJSON(t *testing.T, raw string) models.JSONMap {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("bad test payload: %v", err)
	}
	return models.JSONMap(m)
}

func TestExtractToolCallShapes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantName string
		wantID   string
		wantArg  string
	}{
		{
			name:     "flat manual shape",
			body:     `{"name":"get_quote","arguments":{"ticker":"AAPL"},"toolCallId":"tc-1"}`,
			wantName: "get_quote",
			wantID:   "tc-1",
			wantArg:  "AAPL",
		},
		{
			name:     "official nested function",
			body:     `{"message":{"toolCalls":[{"id":"tc-2","function":{"name":"get_news","arguments":{"ticker":"TSLA"}}}]}}`,
			wantName: "get_news",
			wantID:   "tc-2",
			wantArg:  "TSLA",
		},
		{
			name:     "string-encoded arguments",
			body:     `{"toolCall":{"id":"tc-3","function":{"name":"get_quote","arguments":"{\"ticker\":\"NVDA\"}"}}}`,
			wantName: "get_quote",
			wantID:   "tc-3",
			wantArg:  "NVDA",
		},
		{
			name:     "snake case tool call",
			body:     `{"tool_call":{"name":"get_movers","arguments":{"limit":5},"id":"tc-4"}}`,
			wantName: "get_movers",
			wantID:   "tc-4",
		},
		{
			name:     "delta stream shape",
			body:     `{"delta":{"toolCalls":[{"toolCallId":"tc-5","func":{"name":"get_watchlist"}}]}}`,
			wantName: "get_watchlist",
			wantID:   "tc-5",
		},
		{
			name:     "function_call fallback",
			body:     `{"function_call":{"name":"get_quote","arguments":{"ticker":"MSFT"}},"id":"tc-6"}`,
			wantName: "get_quote",
			wantID:   "tc-6",
			wantArg:  "MSFT",
		},
		{
			name: "empty body",
			body: `{}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractToolCall(mustJSON(t, tt.body))
			if got.Name != tt.wantName {
				t.Errorf("name = %q, want %q", got.Name, tt.wantName)
			}
			if got.ToolCallID != tt.wantID {
				t.Errorf("id = %q, want %q", got.ToolCallID, tt.wantID)
			}
			if tt.wantArg != "" {
				if s, _ := got.Args["ticker"].(string); s != tt.wantArg {
					t.Errorf("ticker = %q, want %q", s, tt.wantArg)
				}
			}
		})
	}
}

func TestParseArgs(t *testing.T) {
	if got := ParseArgs(map[string]interface{}{"ticker": "AAPL"}); got["ticker"] != "AAPL" {
		t.Errorf("map input: got %v", got)
	}
	if got := ParseArgs(`{"ticker":"AAPL"}`); got["ticker"] != "AAPL" {
		t.Errorf("string input: got %v", got)
	}
	if got := ParseArgs("not json"); len(got) != 0 {
		t.Errorf("garbage input: got %v", got)
	}
	if got := ParseArgs(nil); len(got) != 0 {
		t.Errorf("nil input: got %v", got)
	}
}

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		name string
		in   models.JSONMap
		want string
		gone bool
	}{
		{name: "misspelled key", in: models.JSONMap{"tickerr": "AAPL"}, want: "AAPL"},
		{name: "single element array", in: models.JSONMap{"tickers": []interface{}{"TSLA"}}, want: "TSLA"},
		{name: "whitespace trimmed", in: models.JSONMap{"ticker": "  NVDA  "}, want: "NVDA"},
		{name: "blank dropped", in: models.JSONMap{"ticker": "   "}, gone: true},
		{name: "real key wins", in: models.JSONMap{"ticker": "AAPL", "tickerr": "MSFT"}, want: "AAPL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeArgs(tt.in)
			v, has := got["ticker"]
			if tt.gone {
				if has {
					t.Errorf("expected ticker dropped, got %v", v)
				}
				return
			}
			if v != tt.want {
				t.Errorf("ticker = %v, want %q", v, tt.want)
			}
		})
	}
}

func TestInferName(t *testing.T) {
	tests := []struct {
		name string
		args models.JSONMap
		want string
	}{
		{"limit with direction", models.JSONMap{"limit": float64(5), "direction": "up"}, "get_movers"},
		{"limit without direction", models.JSONMap{"limit": float64(5)}, ""},
		{"ticker with reason", models.JSONMap{"ticker": "AAPL", "reason": "earnings"}, "add_to_watchlist"},
		{"bare ticker", models.JSONMap{"ticker": "AAPL"}, "get_quote"},
		{"nothing usable", models.JSONMap{"foo": "bar"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferName(tt.args); got != tt.want {
				t.Errorf("InferName(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestCanonicalName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"get_quote", "get_quote"},
		{"Get-Quote", "get_quote"},
		{"  GET_NEWS ", "get_news"},
		{"get_top_movers", "get_movers"},
		{"get-top-movers", "get_movers"},
	}
	for _, tt := range tests {
		if got := CanonicalName(tt.in); got != tt.want {
			t.Errorf("CanonicalName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUserText(t *testing.T) {
	body := mustJSON(t, `{"message":"add apple to my list"}`)
	args := models.JSONMap{"ticker": "yes"}
	// Argument-carried text wins over the body message.
	if got := UserText(body, args); got != "yes" {
		t.Errorf("got %q, want argument text", got)
	}
	if got := UserText(body, models.JSONMap{}); got != "add apple to my list" {
		t.Errorf("got %q, want body message", got)
	}
	if got := UserText(models.JSONMap{}, models.JSONMap{}); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestConversationID(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"metadata", `{"metadata":{"conversationId":"conv-1"}}`, "conv-1"},
		{"call metadata", `{"call":{"metadata":{"conversationId":"conv-2"}}}`, "conv-2"},
		{"top level", `{"conversationId":"conv-3"}`, "conv-3"},
		{"absent", `{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConversationID(mustJSON(t, tt.body)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
