// Package ticker normalizes and validates stock ticker arguments coming off
// a voice transcript, where "apple", "A P L" and "aapl" all mean symbols.
package ticker

import (
	"fmt"
	"regexp"
	"strings"
)

// tickerRegex matches 1-5 letters with an optional .XX exchange suffix.
var tickerRegex = regexp.MustCompile(`^[A-Z]{1,5}(\.[A-Z]{1,2})?$`)

// Status classifies a ticker argument for a tool invocation.
type Status string

const (
	StatusOK           Status = "ok"
	StatusNeedsConfirm Status = "needs_confirm"
	StatusInvalid      Status = "invalid"
)

// Verdict is the outcome of Decide: either the ticker is usable, or the
// user must confirm, or the argument is unusable. Prompt carries the
// speakable text for the two non-ok cases.
type Verdict struct {
	Status Status
	Ticker string
	Prompt string
}

// Options controls Decide's confirmation policy.
type Options struct {
	// Confirm is true when the user has already said yes for this ticker.
	Confirm bool
	// AllowEmpty accepts a missing ticker (market-wide news).
	AllowEmpty bool
	// RequireConfirm forces a confirmation round-trip even for well-formed
	// tickers. Side-effecting tools set this; read-only tools do not.
	RequireConfirm bool
	// Action names the operation in confirmation prompts ("add", "remove").
	Action string
}

// Normalize trims and upper-cases a raw ticker argument.
// Returns empty string for blank input.
func Normalize(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// IsValid reports whether value normalizes to a well-formed ticker.
func IsValid(value string) bool {
	normalized := Normalize(value)
	return normalized != "" && tickerRegex.MatchString(normalized)
}

// Spell returns the letter-by-letter speakable form: "AAPL" -> "A-A-P-L".
func Spell(ticker string) string {
	return strings.Join(strings.Split(ticker, ""), "-")
}

// Coerce maps a common company name to its ticker when possible, otherwise
// normalizes the raw value.
func Coerce(raw string) string {
	if mapped := MapCommonName(raw); mapped != "" {
		return mapped
	}
	return Normalize(raw)
}

// Decide classifies a ticker argument under the given confirmation policy.
//
// Empty input is invalid unless AllowEmpty. A malformed ticker needs a
// confirmation round-trip with the letters echoed back, since the transcript
// may simply have mangled a valid symbol. A well-formed ticker is ok unless
// RequireConfirm is set and the user has not confirmed yet.
func Decide(raw string, opts Options) Verdict {
	if strings.TrimSpace(raw) == "" {
		if opts.AllowEmpty {
			return Verdict{Status: StatusOK}
		}
		return Verdict{
			Status: StatusInvalid,
			Prompt: "Please provide a ticker (spell it out letter by letter).",
		}
	}

	normalized := Normalize(raw)

	if !tickerRegex.MatchString(normalized) {
		return Verdict{
			Status: StatusNeedsConfirm,
			Ticker: normalized,
			Prompt: fmt.Sprintf("Did you mean ticker %s? say yes or no.", Spell(normalized)),
		}
	}

	if opts.RequireConfirm && !opts.Confirm {
		actionText := fmt.Sprintf("ticker %s", normalized)
		if opts.Action != "" {
			actionText = fmt.Sprintf("%s %s", opts.Action, normalized)
		}
		return Verdict{
			Status: StatusNeedsConfirm,
			Ticker: normalized,
			Prompt: fmt.Sprintf("Confirm %s? Say yes to proceed with %s or no to cancel.", actionText, Spell(normalized)),
		}
	}

	return Verdict{Status: StatusOK, Ticker: normalized}
}
