package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/topten/internal/adapters/scheduler"
	"github.com/okian/topten/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestScheduler_New(t *testing.T) {
	Convey("Given scheduler construction", t, func() {
		Convey("When the job is nil", func() {
			_, err := scheduler.New("@every 1h", nil)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, scheduler.ErrNilJob), ShouldBeTrue)
			})
		})

		Convey("When the spec does not parse", func() {
			_, err := scheduler.New("whenever", func(context.Context) {})

			Convey("Then it is rejected", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "whenever")
			})
		})

		Convey("When the spec is valid", func() {
			s, err := scheduler.New("0 6 * * 1", func(context.Context) {}, scheduler.WithLocation(time.UTC))

			Convey("Then nothing is scheduled until it starts", func() {
				So(err, ShouldBeNil)
				So(s.Next().IsZero(), ShouldBeTrue)
			})

			Convey("And after starting the next run is a Monday at 06:00 UTC", func() {
				s.Start()
				defer s.Stop()
				next := s.Next().UTC()
				So(next.Weekday(), ShouldEqual, time.Monday)
				So(next.Hour(), ShouldEqual, 6)
			})
		})
	})
}

func TestScheduler_Run(t *testing.T) {
	Convey("Given a job scheduled every second", t, func() {
		var runs atomic.Int32
		var sawDeadline atomic.Bool
		s, err := scheduler.New("@every 1s", func(ctx context.Context) {
			if _, ok := ctx.Deadline(); ok {
				sawDeadline.Store(true)
			}
			runs.Add(1)
		}, scheduler.WithJobTimeout(500*time.Millisecond))
		So(err, ShouldBeNil)

		Convey("When it runs for a little over a second", func() {
			s.Start()
			time.Sleep(1500 * time.Millisecond)
			s.Stop()

			Convey("Then the job ran with a bounded context", func() {
				So(runs.Load(), ShouldBeGreaterThanOrEqualTo, int32(1))
				So(sawDeadline.Load(), ShouldBeTrue)
			})
		})
	})
}
