package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/topten/internal/adapters/source/sqlite"
	app "github.com/okian/topten/internal/app"
	"github.com/okian/topten/internal/config"
	"github.com/okian/topten/internal/domain/model"
	"github.com/okian/topten/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func seed(ctx context.Context, path string) error {
	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	a, err := store.AddShow(ctx, model.ShowMeta{Title: "Show A", Platform: "Netflix", Image: "imgA"})
	if err != nil {
		return err
	}
	b, err := store.AddShow(ctx, model.ShowMeta{Title: "Show B"})
	if err != nil {
		return err
	}
	for _, r := range []struct {
		id   int64
		rank int
		date time.Time
	}{
		{a, 3, time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)},
		{b, 2, time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)},
		{a, 1, time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)},
	} {
		if err := store.AddRanking(ctx, r.id, r.rank, r.date); err != nil {
			return err
		}
	}
	return nil
}

func TestOpenBackend(t *testing.T) {
	convey.Convey("Given a configuration", t, func() {
		ctx := context.Background()
		cfg := config.New()

		convey.Convey("When the source is postgrest", func() {
			cfg.BackendURL = "https://example.supabase.co"
			backend, closeFn, err := openBackend(ctx, cfg)

			convey.Convey("Then a client is built without touching the network", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(backend, convey.ShouldNotBeNil)
				convey.So(closeFn, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When the source is unknown", func() {
			cfg.Source = "mysql"
			_, _, err := openBackend(ctx, cfg)

			convey.Convey("Then it is rejected as invalid config", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestEndToEndWithSQLite(t *testing.T) {
	convey.Convey("Given a seeded sqlite database", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.Source = config.SourceSQLite
		cfg.SQLitePath = filepath.Join(t.TempDir(), "topten.db")
		convey.So(seed(ctx, cfg.SQLitePath), convey.ShouldBeNil)

		backend, closeFn, err := openBackend(ctx, cfg)
		convey.So(err, convey.ShouldBeNil)
		defer closeFn()

		svc := app.New(backend, backend, app.WithParallelFetch(false))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		mux := newMux(ctx, svc, cfg.MaxRankingsLimit)

		convey.Convey("When requesting the leaderboard", func() {
			req := httptest.NewRequest(http.MethodGet, "/rankings", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			convey.Convey("Then it is aggregated from the database", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				var entries []model.RankingEntry
				convey.So(json.Unmarshal(w.Body.Bytes(), &entries), convey.ShouldBeNil)
				convey.So(entries, convey.ShouldHaveLength, 2)
				convey.So(entries[0].Title, convey.ShouldEqual, "Show A")
				convey.So(entries[0].Points, convey.ShouldEqual, 18)
				convey.So(entries[0].WeekCount, convey.ShouldEqual, 2)
				convey.So(entries[1].Platform, convey.ShouldEqual, "Unknown")
				convey.So(entries[1].Image, convey.ShouldBeNil)
				convey.So(entries[1].InRecentRanking, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When requesting the docs and health routes", func() {
			for _, target := range []string{"/healthz", "/api-docs", "/openapi.yaml", "/dashboard"} {
				req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.Convey("Then a single update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("Then the loop returns when the context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})
	})
}
