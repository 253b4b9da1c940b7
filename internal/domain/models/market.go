package models

// Quote is a point-in-time price for a single ticker.
type Quote struct {
	Ticker        string  `json:"ticker"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// Mover is a ticker ranked by percent change, for gainers/losers lists.
type Mover struct {
	Ticker        string  `json:"ticker"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"changePercent"`
}

// Headline is a single news item.
type Headline struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Time  string `json:"time,omitempty"`
}

// TodayBrief is the assembled daily briefing for one user.
type TodayBrief struct {
	Summary    string          `json:"summary"`
	TopGainers []Mover         `json:"topGainers"`
	TopLosers  []Mover         `json:"topLosers"`
	Headlines  []Headline      `json:"headlines"`
	Profile    *Profile        `json:"profile,omitempty"`
	Watchlist  []WatchlistItem `json:"watchlist,omitempty"`
}
