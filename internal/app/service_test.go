package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/topten/internal/adapters/source"
	service "github.com/okian/topten/internal/app"
	"github.com/okian/topten/internal/domain/model"
	"github.com/okian/topten/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func day(s string) time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

type fakeRankings struct {
	rows  []model.Observation
	err   error
	calls atomic.Int32
}

func (f *fakeRankings) FetchObservations(ctx context.Context) ([]model.Observation, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeCatalog struct {
	shows []model.ShowMeta
	err   error
	// block waits for ctx cancellation before returning, to observe errgroup cancellation.
	block bool
	calls atomic.Int32
}

func (f *fakeCatalog) FetchAll(ctx context.Context) ([]model.ShowMeta, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.shows, nil
}

func exampleRows() []model.Observation {
	return []model.Observation{
		{Title: "Show A", Rank: 3, Date: day("2024-01-14")},
		{Title: "Show B", Rank: 2, Date: day("2024-01-14")},
		{Title: "Show A", Rank: 1, Date: day("2024-01-07")},
	}
}

func exampleShows() []model.ShowMeta {
	return []model.ShowMeta{
		{ID: 1, Title: "Show A", Platform: "Netflix", Image: "imgA"},
		{ID: 2, Title: "Show B", Platform: "Hulu"},
	}
}

func TestService_Refresh(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		name := "sequential"
		if parallel {
			name = "parallel"
		}

		Convey("Given a service with healthy backends ("+name+")", t, func() {
			rankings := &fakeRankings{rows: exampleRows()}
			catalog := &fakeCatalog{shows: exampleShows()}
			fixed := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
			svc := service.New(rankings, catalog,
				service.WithParallelFetch(parallel),
				service.WithClock(func() time.Time { return fixed }),
			)

			Convey("When refreshing", func() {
				snap, err := svc.Refresh(context.Background())

				Convey("Then a snapshot with the aggregated leaderboard is published", func() {
					So(err, ShouldBeNil)
					So(snap.ID, ShouldNotBeEmpty)
					So(snap.FetchedAt, ShouldEqual, fixed)
					So(snap.Observations, ShouldEqual, 3)
					So(snap.Shows, ShouldEqual, 2)
					So(snap.MostRecentDate, ShouldEqual, "2024-01-14")
					So(snap.Rankings, ShouldHaveLength, 2)
					So(snap.Rankings[0].Title, ShouldEqual, "Show A")
					So(snap.Rankings[0].Points, ShouldEqual, 18)
					So(snap.Rankings[1].Points, ShouldEqual, 9)
				})

				Convey("And the chart is built from the same rows", func() {
					So(snap.Chart.Weeks, ShouldHaveLength, 2)
					So(snap.Chart.Titles, ShouldResemble, []string{"Show A", "Show B"})
				})

				Convey("And readers see it", func() {
					So(svc.Ready(), ShouldBeTrue)
					entries, err := svc.Rankings(context.Background(), 1)
					So(err, ShouldBeNil)
					So(entries, ShouldHaveLength, 1)
					So(entries[0].Title, ShouldEqual, "Show A")

					chart, err := svc.Chart(context.Background())
					So(err, ShouldBeNil)
					So(chart.Weeks[0].Week, ShouldEqual, "2024-01-07")
				})

				Convey("And each refresh gets a new snapshot id", func() {
					next, err := svc.Refresh(context.Background())
					So(err, ShouldBeNil)
					So(next.ID, ShouldNotEqual, snap.ID)
				})
			})
		})
	}
}

func TestService_RefreshFailure(t *testing.T) {
	Convey("Given a service that refreshed once", t, func() {
		rankings := &fakeRankings{rows: exampleRows()}
		catalog := &fakeCatalog{shows: exampleShows()}
		svc := service.New(rankings, catalog)
		first, err := svc.Refresh(context.Background())
		So(err, ShouldBeNil)

		Convey("When the catalog fetch fails", func() {
			catalog.err = source.NewFetchError("fake", source.OpCatalog, errors.New("timeout"))
			rankings.rows = nil
			_, err := svc.Refresh(context.Background())

			Convey("Then the fetch error is returned", func() {
				So(errors.Is(err, source.ErrFetch), ShouldBeTrue)
			})

			Convey("And the previous snapshot stays in place", func() {
				snap, ok := svc.Snapshot()
				So(ok, ShouldBeTrue)
				So(snap.ID, ShouldEqual, first.ID)
				So(snap.Rankings, ShouldHaveLength, 2)
			})

			Convey("And the failure shows in stats", func() {
				stats := svc.GetStats()
				So(stats["failures"], ShouldEqual, 1)
				So(stats["refreshes"], ShouldEqual, 1)
				So(stats["lastError"], ShouldContainSubstring, "timeout")
			})
		})

		Convey("When the observations fetch fails", func() {
			rankings.err = source.NewFetchError("fake", source.OpObservations, errors.New("bad row"))
			_, err := svc.Refresh(context.Background())

			Convey("Then nothing is retried", func() {
				So(err, ShouldNotBeNil)
				So(rankings.calls.Load(), ShouldEqual, int32(2))
			})
		})
	})

	Convey("Given a service that never refreshed", t, func() {
		rankings := &fakeRankings{err: source.NewFetchError("fake", source.OpObservations, errors.New("down"))}
		catalog := &fakeCatalog{shows: exampleShows()}
		svc := service.New(rankings, catalog, service.WithParallelFetch(false))

		Convey("When the first refresh fails", func() {
			_, err := svc.Refresh(context.Background())

			Convey("Then the service stays empty", func() {
				So(err, ShouldNotBeNil)
				So(svc.Ready(), ShouldBeFalse)
				entries, _ := svc.Rankings(context.Background(), 0)
				So(entries, ShouldBeEmpty)
				chart, _ := svc.Chart(context.Background())
				So(chart.Weeks, ShouldBeEmpty)
			})

			Convey("And a sequential refresh skips the catalog read", func() {
				So(catalog.calls.Load(), ShouldEqual, int32(0))
			})
		})
	})

	Convey("Given parallel fetches where the catalog hangs", t, func() {
		rankings := &fakeRankings{err: source.NewFetchError("fake", source.OpObservations, errors.New("down"))}
		catalog := &fakeCatalog{block: true}
		svc := service.New(rankings, catalog, service.WithParallelFetch(true))

		Convey("When the observations fetch fails", func() {
			done := make(chan error, 1)
			go func() {
				_, err := svc.Refresh(context.Background())
				done <- err
			}()

			Convey("Then the pending catalog read is cancelled and the refresh returns", func() {
				select {
				case err := <-done:
					So(errors.Is(err, source.ErrFetch), ShouldBeTrue)
				case <-time.After(5 * time.Second):
					So("refresh did not return", ShouldBeEmpty)
				}
			})
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a service with a refresh schedule", t, func() {
		rankings := &fakeRankings{rows: exampleRows()}
		catalog := &fakeCatalog{shows: exampleShows()}
		svc := service.New(rankings, catalog, service.WithRefreshSchedule("@every 1h"))

		Convey("When starting", func() {
			err := svc.Start(context.Background())
			defer svc.Stop()

			Convey("Then the initial refresh has run", func() {
				So(err, ShouldBeNil)
				So(svc.Ready(), ShouldBeTrue)
				So(rankings.calls.Load(), ShouldEqual, int32(1))
			})

			Convey("And stats report the schedule", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["refreshSchedule"], ShouldEqual, "@every 1h")
				next, ok := stats["nextRefresh"].(time.Time)
				So(ok, ShouldBeTrue)
				So(next.After(time.Now()), ShouldBeTrue)
			})

			Convey("And starting twice is a no-op", func() {
				So(svc.Start(context.Background()), ShouldBeNil)
				So(rankings.calls.Load(), ShouldEqual, int32(1))
			})
		})

		Convey("When stopping", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			svc.Stop()

			Convey("Then it is marked as stopped but keeps its data", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, false)
				So(svc.Ready(), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service whose backend is down", t, func() {
		rankings := &fakeRankings{err: source.NewFetchError("fake", source.OpObservations, errors.New("down"))}
		svc := service.New(rankings, &fakeCatalog{})

		Convey("When starting", func() {
			err := svc.Start(context.Background())
			defer svc.Stop()

			Convey("Then start succeeds with an empty leaderboard", func() {
				So(err, ShouldBeNil)
				So(svc.Ready(), ShouldBeFalse)
			})
		})
	})

	Convey("Given an invalid refresh schedule", t, func() {
		svc := service.New(&fakeRankings{}, &fakeCatalog{}, service.WithRefreshSchedule("sometimes"))

		Convey("Then start fails", func() {
			So(svc.Start(context.Background()), ShouldNotBeNil)
		})
	})
}
