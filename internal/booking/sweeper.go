package booking

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	sweepActor   = "system:sweeper"
	sweepLockKey = "carwash:booking-sweep"
)

// Locker is a best-effort mutual exclusion between overlapping sweeps.
type Locker interface {
	// TryLock returns ok=false without error when another holder owns key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type SweepReport struct {
	Cutoff    time.Time `json:"cutoff"`
	Scanned   int       `json:"scanned"`
	Completed int       `json:"completed"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	// Throttled is set when another sweep held the lock and nothing was scanned.
	Throttled bool `json:"throttled"`
}

// Sweeper completes confirmed and in-progress bookings whose slot has passed. Every row is
// completed through a conditional write, so overlapping or repeated runs are harmless.
type Sweeper struct {
	Store     Store
	Publisher Publisher
	// Locker is optional.
	Locker Locker
	Log    logrus.FieldLogger
	// Grace is how long after the scheduled start a booking stays open.
	Grace     time.Duration
	BatchSize int
	LockTTL   time.Duration
}

// Run performs one sweep as of now. It returns an error only when candidates could not be
// listed; single-row failures are counted and logged.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (SweepReport, error) {
	log := s.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	rep := SweepReport{Cutoff: now.Add(-s.Grace)}

	if s.Locker != nil {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = 4 * time.Minute
		}
		release, ok, err := s.Locker.TryLock(ctx, sweepLockKey, ttl)
		switch {
		case err != nil:
			log.WithError(err).Warn("sweep: lock unavailable, continuing without it")
		case !ok:
			rep.Throttled = true
			log.Info("sweep: another sweep is running")
			return rep, nil
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					log.WithError(err).Warn("sweep: lock release failed")
				}
			}()
		}
	}

	batch := s.BatchSize
	if batch <= 0 {
		batch = 200
	}

	var cursor DueBooking
	for {
		due, err := retryRead(ctx, func() ([]DueBooking, error) {
			return s.Store.ListDue(ctx, rep.Cutoff, cursor, batch)
		})
		if err != nil {
			return rep, storage("list due bookings", err)
		}
		for _, d := range due {
			rep.Scanned++
			s.completeOne(ctx, log, d, now, &rep)
		}
		if len(due) < batch {
			break
		}
		cursor = due[len(due)-1]
	}

	log.WithFields(logrus.Fields{
		"cutoff":    rep.Cutoff,
		"scanned":   rep.Scanned,
		"completed": rep.Completed,
		"skipped":   rep.Skipped,
		"failed":    rep.Failed,
	}).Info("sweep: done")
	return rep, nil
}

func (s *Sweeper) completeOne(ctx context.Context, log logrus.FieldLogger, d DueBooking, now time.Time, rep *SweepReport) {
	if !CanTransition(d.Status, StatusCompleted) {
		rep.Skipped++
		return
	}
	updated, err := s.Store.Transition(ctx, Transition{
		BookingID: d.ID,
		Expected:  d.Status,
		To:        StatusCompleted,
		At:        now,
		Actor:     sweepActor,
	})
	if errors.Is(err, ErrStale) {
		rep.Skipped++
		return
	}
	if err != nil {
		rep.Failed++
		log.WithError(err).WithField("booking_id", d.ID).Error("sweep: complete failed")
		return
	}
	rep.Completed++
	publish(ctx, s.Publisher, log, newStatusChanged(updated, d.Status, sweepActor))
}
