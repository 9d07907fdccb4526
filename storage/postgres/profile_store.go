// Package pgstore implements the profile store on Postgres: bun for
// document reads/writes, and a LISTEN/NOTIFY channel for the push path
// the entitlement observer subscribes to. A row trigger (see
// migrations) notifies the channel with the user id on every
// membership change.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/freevoice-app/memberkit/core"
	"github.com/freevoice-app/memberkit/entitlement"
	"github.com/freevoice-app/memberkit/profile"
)

// NotifyChannel is the Postgres channel profile change notifications
// arrive on. The migration installs a trigger that publishes the user
// id here.
const NotifyChannel = "memberkit_profile_changed"

type profileRow struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	UserID                string `bun:"user_id,pk"`
	Name                  string `bun:"name"`
	Email                 string `bun:"email"`
	AvatarURL             string `bun:"avatar_url"`
	MembershipTier        string `bun:"membership_tier"`
	MembershipActive      bool   `bun:"membership_active"`
	MembershipExpiresAtMs int64  `bun:"membership_expires_at_ms"`
}

func (r *profileRow) document() *profile.Document {
	return &profile.Document{
		UserID:    r.UserID,
		Name:      r.Name,
		Email:     r.Email,
		AvatarURL: r.AvatarURL,
		Membership: entitlement.Record{
			UserID:      r.UserID,
			Tier:        entitlement.Tier(r.MembershipTier),
			Active:      r.MembershipActive,
			ExpiresAtMs: r.MembershipExpiresAtMs,
		},
	}
}

// Store is the Postgres-backed profile.Store.
type Store struct {
	db   *bun.DB
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

// NewStore wraps an existing pgx pool. The pool is shared with the
// payment grant queue; bun rides on it through the stdlib adapter.
func NewStore(pool *pgxpool.Pool, log logrus.FieldLogger) *Store {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	sqldb := stdlib.OpenDBFromPool(pool)
	return &Store{
		db:   bun.NewDB(sqldb, pgdialect.New()),
		pool: pool,
		log:  log,
	}
}

// DB exposes the bun handle for migrations.
func (s *Store) DB() *bun.DB { return s.db }

func (s *Store) Get(ctx context.Context, userID string) (*entitlement.Record, error) {
	doc, err := s.GetDocument(ctx, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	rec := doc.Membership
	return &rec, nil
}

func (s *Store) GetDocument(ctx context.Context, userID string) (*profile.Document, error) {
	row := new(profileRow)
	err := s.db.NewSelect().Model(row).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return row.document(), nil
}

func (s *Store) EnsureProfile(ctx context.Context, doc profile.Document) error {
	row := &profileRow{
		UserID:                doc.UserID,
		Name:                  doc.Name,
		Email:                 doc.Email,
		AvatarURL:             doc.AvatarURL,
		MembershipTier:        string(doc.Membership.Tier),
		MembershipActive:      doc.Membership.Active,
		MembershipExpiresAtMs: doc.Membership.ExpiresAtMs,
	}
	if row.MembershipTier == "" {
		row.MembershipTier = string(entitlement.TierFree)
	}
	_, err := s.db.NewInsert().Model(row).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) UpdateMembership(ctx context.Context, userID string, rec entitlement.Record) error {
	res, err := s.db.NewUpdate().Model((*profileRow)(nil)).
		Set("membership_tier = ?", string(rec.Tier)).
		Set("membership_active = ?", rec.Active).
		Set("membership_expires_at_ms = ?", rec.ExpiresAtMs).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("profile %s: %w", userID, core.ErrInvalidRecord)
	}
	return nil
}

// Downgrade clears the active flag after a hard-lock. Best-effort
// write-back; expiry already governs the derived state.
func (s *Store) Downgrade(ctx context.Context, userID string) error {
	_, err := s.db.NewUpdate().Model((*profileRow)(nil)).
		Set("membership_active = ?", false).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}
