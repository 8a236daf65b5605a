// Package model contains domain models passed between layers.
package model

import "time"

// Point arithmetic and catalog defaults.
const (
	// PointsBase is the constant a weekly rank is subtracted from: rank 1 earns 10 points.
	PointsBase = 11
	// UnknownPlatform stands in for a missing or empty catalog platform.
	UnknownPlatform = "Unknown"
	// DateLayout is the calendar-date layout used for ranking weeks.
	DateLayout = "2006-01-02"
)

// Observation is one weekly top-ten ranking row.
type Observation struct {
	Title string    // show title, the join key into the catalog
	Rank  int       // weekly rank, nominally 1..10 but not enforced
	Date  time.Time // ranking week, UTC midnight
}

// ShowMeta is static catalog data for a single show.
// Empty Platform or Image means the backend had no value.
type ShowMeta struct {
	ID       int64
	Title    string
	Platform string
	Image    string
}

// RankingEntry is one row of the aggregated leaderboard.
type RankingEntry struct {
	Title           string  `json:"title"`
	Platform        string  `json:"platform"`
	Points          int     `json:"points"`
	WeekCount       int     `json:"weekCount"`
	Image           *string `json:"image"`
	InRecentRanking bool    `json:"inRecentRanking"`
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
