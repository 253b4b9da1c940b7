// Package vapi implements the voice-platform webhook surface: tool-call
// extraction from the platform's many payload shapes, user resolution,
// confirmation replay, the tool registry and the response envelope.
package vapi

import (
	"encoding/json"
	"strings"

	"marketbrief/internal/domain/models"
)

// ToolCall is the invocation extracted from a webhook body.
type ToolCall struct {
	Name       string
	Args       models.JSONMap
	ToolCallID string
}

// UnknownToolCallID marks payloads that carried no usable id. Such calls
// run without idempotency protection; the id is shared, not unique.
const UnknownToolCallID = "unknown"

// candidatePaths are the nested locations a tool call may hide in,
// probed in order. The platform and its SDK versions disagree on shape.
var candidatePaths = [][]string{
	{"toolCall"},
	{"tool"},
	{"tool_call"},
	{"tool_calls", "0"},
	{"toolCalls", "0"},
	{"message", "toolCall"},
	{"message", "toolCalls", "0"},
	{"message", "tool_call"},
	{"message", "tool_calls", "0"},
	{"delta", "toolCall"},
	{"delta", "toolCalls", "0"},
	{"delta", "tool_call"},
	{"delta", "tool_calls", "0"},
	{"payload", "toolCall"},
	{"payload", "toolCalls", "0"},
	{"response", "toolCall"},
	{"response", "toolCalls", "0"},
}

// ExtractToolCall pulls the tool name, arguments and toolCallId out of a
// webhook body, whatever shape the platform chose. Missing pieces come
// back empty; the caller decides what is fatal.
func ExtractToolCall(body models.JSONMap) ToolCall {
	if body == nil {
		return ToolCall{}
	}

	// Flat manual-testing shape: {"name": ..., "arguments": ...}.
	if name, ok := body["name"].(string); ok {
		args := firstValue(body["arguments"], body["args"])
		return ToolCall{
			Name:       name,
			Args:       ParseArgs(args),
			ToolCallID: firstString(body["toolCallId"], body["id"]),
		}
	}

	for _, path := range candidatePaths {
		tc, ok := dig(body, path)
		if !ok {
			continue
		}
		fn := tc
		if nested, ok := tc["function"].(map[string]interface{}); ok {
			fn = nested
		} else if nested, ok := tc["func"].(map[string]interface{}); ok {
			fn = nested
		}
		name := firstString(fn["name"], tc["name"], body["toolName"],
			digValue(body, "function", "name"), digValue(body, "function_call", "name"))
		args := firstValue(fn["arguments"], tc["arguments"], body["arguments"],
			digValue(body, "function", "arguments"), digValue(body, "function_call", "arguments"))
		id := firstString(tc["id"], tc["toolCallId"], body["toolCallId"], body["id"])
		return ToolCall{Name: name, Args: ParseArgs(args), ToolCallID: id}
	}

	return ToolCall{
		Name: firstString(body["toolName"],
			digValue(body, "function", "name"), digValue(body, "function_call", "name")),
		Args: ParseArgs(firstValue(body["arguments"],
			digValue(body, "function", "arguments"), digValue(body, "function_call", "arguments"))),
		ToolCallID: firstString(body["toolCallId"], body["id"]),
	}
}

// ParseArgs accepts arguments as an object or a JSON-encoded string and
// returns a map either way. Unparseable input yields an empty map.
func ParseArgs(value interface{}) models.JSONMap {
	switch v := value.(type) {
	case map[string]interface{}:
		return models.JSONMap(v)
	case models.JSONMap:
		return v
	case string:
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return models.JSONMap{}
		}
		return models.JSONMap(parsed)
	default:
		return models.JSONMap{}
	}
}

// NormalizeArgs repairs common transcription artifacts in place: the
// "tickerr" misspelling, single-element "tickers" arrays, and whitespace
// around the ticker. A blank ticker is dropped entirely.
func NormalizeArgs(args models.JSONMap) models.JSONMap {
	if args == nil {
		return models.JSONMap{}
	}
	if _, has := args["ticker"]; !has {
		if v, ok := args["tickerr"]; ok {
			args["ticker"] = v
		} else if list, ok := args["tickers"].([]interface{}); ok && len(list) == 1 {
			args["ticker"] = list[0]
		}
	}
	if s, ok := args["ticker"].(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			delete(args, "ticker")
		} else {
			args["ticker"] = s
		}
	}
	return args
}

// InferName guesses the tool from argument shape when the platform sends
// none: a limit plus a direction word means movers; a ticker with a
// reason means a watchlist add; a bare ticker means a quote.
func InferName(args models.JSONMap) string {
	if _, hasLimit := args["limit"]; hasLimit {
		if dir, ok := args["direction"].(string); ok {
			switch dir {
			case "up", "down", "gainers", "losers":
				return "get_movers"
			}
		}
	}
	if t, ok := args["ticker"].(string); ok && t != "" {
		if _, hasReason := args["reason"]; hasReason {
			return "add_to_watchlist"
		}
		return "get_quote"
	}
	return ""
}

// toolAliases maps legacy tool names onto canonical ones.
var toolAliases = map[string]string{
	"get_top_movers": "get_movers",
}

// CanonicalName lowercases, converts dashes to underscores and resolves
// aliases. The result may still be unknown to the registry.
func CanonicalName(name string) string {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	if canonical, ok := toolAliases[normalized]; ok {
		return canonical
	}
	return normalized
}

// UserText pulls the free-text utterance carried alongside a tool call,
// checked argument-first. The confirmation replay matches yes/no against it.
func UserText(body, args models.JSONMap) string {
	candidates := []interface{}{
		args["ticker"], args["message"], args["text"],
		body["message"], body["text"], body["userMessage"],
	}
	for _, c := range candidates {
		if s, ok := c.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// ConversationID finds the conversation id in its known locations.
func ConversationID(body models.JSONMap) string {
	if s := firstString(
		digValue(body, "metadata", "conversationId"),
		digValue(body, "call", "metadata", "conversationId"),
		body["conversationId"],
	); s != "" {
		return s
	}
	return ""
}

// dig walks nested maps (and array heads for "0" segments) and returns
// the map at the end of the path.
func dig(m models.JSONMap, path []string) (map[string]interface{}, bool) {
	var current interface{} = map[string]interface{}(m)
	for _, segment := range path {
		if segment == "0" {
			list, ok := current.([]interface{})
			if !ok || len(list) == 0 {
				return nil, false
			}
			current = list[0]
			continue
		}
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current = obj[segment]
	}
	obj, ok := current.(map[string]interface{})
	return obj, ok && obj != nil
}

func digValue(m models.JSONMap, path ...string) interface{} {
	var current interface{} = map[string]interface{}(m)
	for _, segment := range path {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = obj[segment]
	}
	return current
}

func firstString(values ...interface{}) string {
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstValue(values ...interface{}) interface{} {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
