// Package series builds the rank-over-time chart data for each show.
package series

import (
	"cmp"
	"slices"

	"github.com/okian/topten/internal/domain/model"
)

// Rank axis bounds. Rank 1 is drawn at the top.
const (
	AxisMin = 1
	AxisMax = 10
)

// palette is cycled across chart lines in title order.
var palette = []string{"#8884d8", "#82ca9d", "#ffc658", "#ff7300", "#0088FE", "#00C49F", "#FFBB28"}

// Axis describes the rank axis of the chart.
type Axis struct {
	Min      int  `json:"min"`
	Max      int  `json:"max"`
	Reversed bool `json:"reversed"`
}

// Week holds each show's rank for one ranking date.
type Week struct {
	Week  string         `json:"week"`
	Ranks map[string]int `json:"ranks"`
}

// Standing is one show's position within a week.
type Standing struct {
	Title string `json:"title"`
	Rank  int    `json:"rank"`
}

// Line is the plotted series for one show.
type Line struct {
	Title string `json:"title"`
	Color string `json:"color"`
}

// Chart is the full rank-over-time data set.
type Chart struct {
	Titles []string `json:"titles"`
	Lines  []Line   `json:"lines"`
	Weeks  []Week   `json:"weeks"`
	Axis   Axis     `json:"axis"`
}

// Build groups observations by date. Weeks come out in ascending date order
// and titles in the order they first appear once sorted by date. When a
// title has more than one row on a date the last one wins.
func Build(observations []model.Observation) Chart {
	sorted := slices.Clone(observations)
	slices.SortStableFunc(sorted, func(a, b model.Observation) int {
		return a.Date.Compare(b.Date)
	})

	chart := Chart{
		Titles: make([]string, 0),
		Lines:  make([]Line, 0),
		Weeks:  make([]Week, 0),
		Axis:   Axis{Min: AxisMin, Max: AxisMax, Reversed: true},
	}

	seen := make(map[string]struct{})
	weekIdx := make(map[string]int)
	for _, o := range sorted {
		key := o.Date.UTC().Format(model.DateLayout)
		i, ok := weekIdx[key]
		if !ok {
			i = len(chart.Weeks)
			weekIdx[key] = i
			chart.Weeks = append(chart.Weeks, Week{Week: key, Ranks: make(map[string]int)})
		}
		chart.Weeks[i].Ranks[o.Title] = o.Rank

		if _, ok := seen[o.Title]; !ok {
			seen[o.Title] = struct{}{}
			chart.Titles = append(chart.Titles, o.Title)
		}
	}

	for i, title := range chart.Titles {
		chart.Lines = append(chart.Lines, Line{Title: title, Color: ColorFor(i)})
	}
	return chart
}

// Standings lists the week's shows by rank, best first. Ties sort by title.
func (w Week) Standings() []Standing {
	out := make([]Standing, 0, len(w.Ranks))
	for title, rank := range w.Ranks {
		out = append(out, Standing{Title: title, Rank: rank})
	}
	slices.SortFunc(out, func(a, b Standing) int {
		if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
			return c
		}
		return cmp.Compare(a.Title, b.Title)
	})
	return out
}

// ColorFor returns the line colour for the i-th title.
func ColorFor(i int) string {
	if i < 0 {
		i = -i
	}
	return palette[i%len(palette)]
}
