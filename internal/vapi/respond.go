package vapi

import (
	"encoding/json"
	"strconv"
	"strings"

	"marketbrief/internal/domain/models"
)

// Payload is the closed set of data shapes a tool handler may return.
// The formatter pattern-matches on the concrete type instead of probing
// field presence.
type Payload interface {
	payload()
}

// QuotePayload is a single-ticker quote.
type QuotePayload struct {
	models.Quote
}

// MoversPayload ranks tickers by percent change.
type MoversPayload struct {
	Direction string         `json:"direction"`
	Movers    []models.Mover `json:"movers"`
}

// NewsPayload holds headlines for a ticker or the whole market.
type NewsPayload struct {
	Ticker    string            `json:"ticker"`
	Headlines []models.Headline `json:"headlines"`
}

// WatchlistPayload is the full watchlist.
type WatchlistPayload struct {
	Items []models.WatchlistItem `json:"items"`
}

// MutationPayload reports a watchlist change. Exactly one field is set.
type MutationPayload struct {
	Added   string `json:"added,omitempty"`
	Removed string `json:"removed,omitempty"`
}

// BriefPayload is the assembled daily briefing.
type BriefPayload struct {
	Summary    string                 `json:"summary"`
	TopGainers []models.Mover         `json:"topGainers"`
	TopLosers  []models.Mover         `json:"topLosers"`
	Headlines  []models.Headline      `json:"headlines"`
	Profile    *models.Profile        `json:"profile,omitempty"`
	Watchlist  []models.WatchlistItem `json:"watchlist,omitempty"`
}

// ProfilePayload is the user's briefing preferences.
type ProfilePayload struct {
	*models.Profile
}

// MessagePayload is a plain speakable sentence, used where the outcome is
// the message itself, like a cancelled confirmation.
type MessagePayload struct {
	Text string `json:"text"`
}

// GenericPayload carries anything without a dedicated variant.
type GenericPayload struct {
	Data models.JSONMap
}

func (QuotePayload) payload()     {}
func (MoversPayload) payload()    {}
func (NewsPayload) payload()      {}
func (WatchlistPayload) payload() {}
func (MutationPayload) payload()  {}
func (BriefPayload) payload()     {}
func (ProfilePayload) payload()   {}
func (MessagePayload) payload()   {}
func (GenericPayload) payload()   {}

// Response is the outcome of one tool dispatch, before formatting.
type Response struct {
	OK   bool
	Err  string
	Data Payload
}

// errorResponse builds a not-ok response with a speakable error.
func errorResponse(msg string) Response {
	return Response{OK: false, Err: msg}
}

// Format renders a Response as the single line of text the voice platform
// will speak. The output never contains a newline.
func Format(resp Response) string {
	if !resp.OK {
		if resp.Err != "" {
			return singleLine(resp.Err)
		}
		return "An error occurred"
	}
	if resp.Data == nil {
		return "No data available"
	}

	switch data := resp.Data.(type) {
	case QuotePayload:
		return quoteLine(data)
	case WatchlistPayload:
		if len(data.Items) == 0 {
			return "Watchlist is empty"
		}
		tickers := make([]string, 0, len(data.Items))
		for _, item := range data.Items {
			tickers = append(tickers, item.Ticker)
		}
		return "Watchlist: " + strings.Join(tickers, ", ")
	case MutationPayload:
		if data.Added != "" {
			return "Added " + data.Added + " to watchlist"
		}
		if data.Removed != "" {
			return "Removed " + data.Removed + " from watchlist"
		}
		return "No data available"
	case BriefPayload:
		if data.Summary != "" {
			return singleLine(data.Summary)
		}
		return jsonLine(data)
	case MessagePayload:
		return singleLine(data.Text)
	case GenericPayload:
		return jsonLine(data.Data)
	default:
		return jsonLine(resp.Data)
	}
}

func quoteLine(data QuotePayload) string {
	change := strconv.FormatFloat(data.Change, 'f', -1, 64)
	if data.Change >= 0 {
		change = "+" + change
	}
	changePercent := strconv.FormatFloat(data.ChangePercent, 'f', 2, 64) + "%"
	if data.ChangePercent >= 0 {
		changePercent = "+" + changePercent
	}
	return data.Ticker + " is trading at $" + strconv.FormatFloat(data.Price, 'f', 2, 64) +
		", " + change + " (" + changePercent + ")"
}

func jsonLine(v interface{}) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		return "No data available"
	}
	return singleLine(string(encoded))
}

// singleLine collapses all whitespace runs, including newlines, to one space.
func singleLine(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

// ResultEnvelope is the exact wire shape the voice platform expects back.
type ResultEnvelope struct {
	Results []ToolResult `json:"results"`
}

// ToolResult pairs a toolCallId with its spoken result.
type ToolResult struct {
	ToolCallID string `json:"toolCallId"`
	Result     string `json:"result"`
}

// Wrap builds the response envelope for one tool call.
func Wrap(toolCallID string, resp Response) ResultEnvelope {
	return ResultEnvelope{
		Results: []ToolResult{{ToolCallID: toolCallID, Result: Format(resp)}},
	}
}

// WrapText builds the envelope around a pre-formatted string.
func WrapText(toolCallID, result string) ResultEnvelope {
	return ResultEnvelope{
		Results: []ToolResult{{ToolCallID: toolCallID, Result: result}},
	}
}

// EnvelopeMap converts an envelope to a JSONMap for ledger storage.
func EnvelopeMap(env ResultEnvelope) models.JSONMap {
	results := make([]interface{}, 0, len(env.Results))
	for _, r := range env.Results {
		results = append(results, map[string]interface{}{
			"toolCallId": r.ToolCallID,
			"result":     r.Result,
		})
	}
	return models.JSONMap{"results": results}
}

// EnvelopeFromMap rebuilds an envelope from its ledger storage form.
func EnvelopeFromMap(m models.JSONMap) (ResultEnvelope, bool) {
	raw, ok := m["results"].([]interface{})
	if !ok {
		return ResultEnvelope{}, false
	}
	env := ResultEnvelope{}
	for _, item := range raw {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return ResultEnvelope{}, false
		}
		env.Results = append(env.Results, ToolResult{
			ToolCallID: firstString(obj["toolCallId"]),
			Result:     firstString(obj["result"]),
		})
	}
	return env, len(env.Results) > 0
}
