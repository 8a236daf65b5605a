// Package ranking turns weekly top-ten observations into a points leaderboard.
package ranking

import (
	"slices"
	"time"

	"github.com/okian/topten/internal/domain/model"
)

// tally accumulates one title's weekly results.
type tally struct {
	points    int
	weekCount int
	recent    bool
}

// Aggregate builds the leaderboard for observations joined against catalog.
//
// Every observation counts, duplicates included, and contributes
// model.PointsBase-rank points without clamping. An entry is flagged recent
// when one of its rows falls on the latest date in the whole input. Entries
// are sorted by points descending; equal points keep the order in which the
// titles first appear in observations.
func Aggregate(observations []model.Observation, catalog []model.ShowMeta) []model.RankingEntry {
	entries := make([]model.RankingEntry, 0)
	if len(observations) == 0 {
		return entries
	}

	mostRecent := latestDate(observations)

	order := make([]string, 0)
	tallies := make(map[string]*tally)
	for _, o := range observations {
		t, ok := tallies[o.Title]
		if !ok {
			t = &tally{}
			tallies[o.Title] = t
			order = append(order, o.Title)
		}
		t.points += model.PointsBase - o.Rank
		t.weekCount++
		if o.Date.Equal(mostRecent) {
			t.recent = true
		}
	}

	shows := indexCatalog(catalog)
	for _, title := range order {
		t := tallies[title]
		entry := model.RankingEntry{
			Title:           title,
			Platform:        model.UnknownPlatform,
			Points:          t.points,
			WeekCount:       t.weekCount,
			InRecentRanking: t.recent,
		}
		if meta, ok := shows[title]; ok {
			if meta.Platform != "" {
				entry.Platform = meta.Platform
			}
			if meta.Image != "" {
				image := meta.Image
				entry.Image = &image
			}
		}
		entries = append(entries, entry)
	}

	slices.SortStableFunc(entries, func(a, b model.RankingEntry) int {
		return b.Points - a.Points
	})
	return entries
}

// MostRecentDate reports the latest observation date, or false for empty input.
func MostRecentDate(observations []model.Observation) (time.Time, bool) {
	if len(observations) == 0 {
		return time.Time{}, false
	}
	return latestDate(observations), true
}

func latestDate(observations []model.Observation) time.Time {
	latest := observations[0].Date
	for _, o := range observations[1:] {
		if o.Date.After(latest) {
			latest = o.Date
		}
	}
	return latest
}

// indexCatalog maps titles to catalog rows; the first row for a title wins.
func indexCatalog(catalog []model.ShowMeta) map[string]model.ShowMeta {
	idx := make(map[string]model.ShowMeta, len(catalog))
	for _, meta := range catalog {
		if _, seen := idx[meta.Title]; !seen {
			idx[meta.Title] = meta
		}
	}
	return idx
}
