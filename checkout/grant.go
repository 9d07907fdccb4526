package checkout

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/sirupsen/logrus"

	"github.com/freevoice-app/memberkit/core"
	"github.com/freevoice-app/memberkit/entitlement"
	"github.com/freevoice-app/memberkit/profile"
)

// GrantArgs is the background job applying one paid membership grant.
type GrantArgs struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	PlanID  string `json:"plan_id"`
}

// Kind implements river.JobArgs.
func (GrantArgs) Kind() string { return "membership_grant" }

// Dedup records processed payment events. MarkProcessed returns false
// when the event was already applied, so webhook retries and provider
// redeliveries grant at most once.
type Dedup interface {
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}

// GrantWorker applies grants: plan -> duration, expiry = now +
// duration, written to the profile store. The store push then carries
// the renewal to every running client.
type GrantWorker struct {
	river.WorkerDefaults[GrantArgs]

	store profile.Store
	dedup Dedup
	plans *PlanTable
	clock core.Clock
	audit core.MembershipEventLogger
	log   logrus.FieldLogger
}

// NewGrantWorker builds the worker. dedup and audit are optional.
func NewGrantWorker(store profile.Store, dedup Dedup, plans *PlanTable, clock core.Clock, audit core.MembershipEventLogger, log logrus.FieldLogger) *GrantWorker {
	if clock == nil {
		clock = core.SystemClock()
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if plans == nil {
		plans = DefaultPlans()
	}
	return &GrantWorker{store: store, dedup: dedup, plans: plans, clock: clock, audit: audit, log: log}
}

// Work implements river.Worker.
func (w *GrantWorker) Work(ctx context.Context, job *river.Job[GrantArgs]) error {
	args := job.Args
	plan, ok := w.plans.Lookup(args.PlanID)
	if !ok {
		// Unknown plan will not become known on retry.
		return river.JobCancel(fmt.Errorf("plan %q: %w", args.PlanID, ErrUnknownPlan))
	}
	if w.dedup != nil {
		fresh, err := w.dedup.MarkProcessed(ctx, args.EventID)
		if err != nil {
			return err
		}
		if !fresh {
			w.log.WithField("event_id", args.EventID).Debug("duplicate payment event skipped")
			return nil
		}
	}

	now := w.clock.Now()
	rec := entitlement.Record{
		UserID:      args.UserID,
		Tier:        plan.Tier,
		Active:      true,
		ExpiresAtMs: plan.ExpiryFor(now),
	}
	if err := w.store.UpdateMembership(ctx, args.UserID, rec); err != nil {
		return err
	}
	if w.audit != nil {
		_ = w.audit.LogGrant(ctx, args.UserID, string(plan.Tier), rec.ExpiresAtMs, "checkout_webhook")
	}
	w.log.WithFields(logrus.Fields{
		"user_id": args.UserID,
		"tier":    plan.Tier,
	}).Info("membership grant applied")
	return nil
}

// Enqueuer inserts grant jobs; the gin webhook handler depends on this
// rather than on the queue client.
type Enqueuer interface {
	Enqueue(ctx context.Context, args GrantArgs) error
}

// RiverEnqueuer enqueues grants on a river client.
type RiverEnqueuer struct {
	Client *river.Client[pgx.Tx]
}

// Enqueue inserts the grant job, keyed for uniqueness by event id.
func (e *RiverEnqueuer) Enqueue(ctx context.Context, args GrantArgs) error {
	if args.EventID == "" {
		args.EventID = uuid.NewString()
	}
	_, err := e.Client.Insert(ctx, args, &river.InsertOpts{
		UniqueOpts: river.UniqueOpts{ByArgs: true},
	})
	return err
}

// NewRiverClient builds a river client on the shared pgx pool with the
// grant worker registered.
func NewRiverClient(pool *pgxpool.Pool, worker *GrantWorker) (*river.Client[pgx.Tx], error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, worker)
	return river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 4},
		},
		Workers: workers,
	})
}
