// Package pgstore implements usage.Store on PostgreSQL.
//
// Accounts live in usage_accounts with one column per counter; pending
// reservations live in usage_reservations. Every mutation locks the account
// row with SELECT ... FOR UPDATE, so requests for one account are serialized
// and requests for different accounts never wait on each other.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/gengate/pkg/plans"
	"github.com/dmitrymomot/gengate/pkg/usage"
)

// counterColumns maps dimensions to their column. Ordered like plans.Dimensions.
var counterColumns = map[plans.Dimension]string{
	plans.DailyTextA:        "daily_text_a",
	plans.DailyTextB:        "daily_text_b",
	plans.MonthlyImages:     "monthly_images",
	plans.MonthlyMusic:      "monthly_music",
	plans.MonthlyVideos:     "monthly_videos",
	plans.MonthlyDeepTokens: "monthly_deep_tokens",
}

const selectAccount = `SELECT user_id, username, first_name, last_name, plan,
	daily_text_a, daily_text_b, monthly_images, monthly_music, monthly_videos, monthly_deep_tokens,
	last_daily_reset, last_monthly_reset, created_at, updated_at, version
	FROM usage_accounts WHERE user_id = $1`

type Store struct {
	pool   *pgxpool.Pool
	limits usage.Limits
	opts   usage.Options
}

var _ usage.Store = (*Store)(nil)

// New returns a Postgres-backed store. Run Migrate before first use.
func New(pool *pgxpool.Pool, limits usage.Limits, opts ...usage.Option) *Store {
	return &Store{pool: pool, limits: limits, opts: usage.NewOptions(opts...)}
}

// GetOrCreate inserts a FREE account unless one exists and returns the stored row.
func (s *Store) GetOrCreate(ctx context.Context, userID int64, id usage.Identity) (*usage.Account, error) {
	now := s.opts.Now()
	tag, err := s.pool.Exec(ctx, `INSERT INTO usage_accounts
		(user_id, username, first_name, last_name, plan, last_daily_reset, last_monthly_reset, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $6, $6)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, id.Username, id.FirstName, id.LastName, string(plans.TierFree), now)
	if err != nil {
		return nil, errors.Join(usage.ErrStoreFailure, err)
	}
	if tag.RowsAffected() == 1 {
		s.opts.Logger.DebugContext(ctx, "account created", slog.Int64("user_id", userID))
	}

	return s.read(ctx, s.pool, userID, false)
}

// CheckAndReserve runs the quota gate with the account row locked.
func (s *Store) CheckAndReserve(ctx context.Context, userID int64, d plans.Dimension, amount int64) (usage.Reservation, error) {
	var res usage.Reservation
	err := s.withAccount(ctx, userID, func(acc *usage.Account) error {
		r, err := usage.Reserve(acc, s.limits, d, amount, s.opts.Now(), s.opts.ReservationTTL)
		res = r
		return err
	})
	return res, err
}

// Commit applies a reservation once.
func (s *Store) Commit(ctx context.Context, r usage.Reservation) error {
	err := s.withAccount(ctx, r.UserID, func(acc *usage.Account) error {
		return usage.Apply(acc, r, s.opts.Now())
	})
	if errors.Is(err, usage.ErrAccountNotFound) {
		return usage.ErrReservationNotFound
	}
	return err
}

// Release deletes a reservation without charging it.
func (s *Store) Release(ctx context.Context, r usage.Reservation) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM usage_reservations WHERE id = $1`, r.ID); err != nil {
		return errors.Join(usage.ErrStoreFailure, err)
	}
	return nil
}

// SetPlan changes the tier and keeps counters.
func (s *Store) SetPlan(ctx context.Context, userID int64, tier plans.Tier) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE usage_accounts SET plan = $2, updated_at = $3, version = version + 1 WHERE user_id = $1`,
		userID, string(tier), s.opts.Now())
	if err != nil {
		return errors.Join(usage.ErrStoreFailure, err)
	}
	if tag.RowsAffected() == 0 {
		return usage.ErrAccountNotFound
	}
	return nil
}

// Snapshot reads the account without locking and applies due resets to the copy.
func (s *Store) Snapshot(ctx context.Context, userID int64) (*usage.Account, error) {
	acc, err := s.read(ctx, s.pool, userID, false)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	usage.ApplyResets(acc, now)
	acc.DropExpired(now)
	return acc, nil
}

// PurgeExpired deletes reservations past their TTL.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM usage_reservations WHERE expires_at <= $1`, s.opts.Now())
	if err != nil {
		return 0, errors.Join(usage.ErrStoreFailure, err)
	}
	return int(tag.RowsAffected()), nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// withAccount locks the row, hands a document view to fn and writes back the
// difference. Quota refusals are persisted too so a reset applied before the
// refusal sticks.
func (s *Store) withAccount(ctx context.Context, userID int64, fn func(*usage.Account) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Join(usage.ErrStoreFailure, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeout.Milliseconds())); err != nil {
		return errors.Join(usage.ErrStoreFailure, err)
	}

	acc, err := s.read(ctx, tx, userID, true)
	if err != nil {
		return err
	}
	before := make(map[uuid.UUID]struct{}, len(acc.Pending))
	for _, r := range acc.Pending {
		before[r.ID] = struct{}{}
	}

	fnErr := fn(acc)
	if fnErr != nil && !usage.IsRefusal(fnErr) {
		return fnErr
	}

	if err := s.write(ctx, tx, acc, before); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Join(usage.ErrStoreFailure, err)
	}
	return fnErr
}

func (s *Store) read(ctx context.Context, q querier, userID int64, lock bool) (*usage.Account, error) {
	query := selectAccount
	if lock {
		query += " FOR UPDATE"
	}

	acc := &usage.Account{Counters: make(map[plans.Dimension]int64, len(plans.Dimensions))}
	var (
		tier                                      string
		textA, textB, images, music, videos, deep int64
	)
	err := q.QueryRow(ctx, query, userID).Scan(
		&acc.UserID, &acc.Username, &acc.FirstName, &acc.LastName, &tier,
		&textA, &textB, &images, &music, &videos, &deep,
		&acc.LastDailyReset, &acc.LastMonthlyReset, &acc.CreatedAt, &acc.UpdatedAt, &acc.Version,
	)
	if isNotFound(err) {
		return nil, usage.ErrAccountNotFound
	}
	if err != nil {
		return nil, errors.Join(usage.ErrStoreFailure, err)
	}

	acc.Plan = plans.Tier(tier)
	acc.Counters[plans.DailyTextA] = textA
	acc.Counters[plans.DailyTextB] = textB
	acc.Counters[plans.MonthlyImages] = images
	acc.Counters[plans.MonthlyMusic] = music
	acc.Counters[plans.MonthlyVideos] = videos
	acc.Counters[plans.MonthlyDeepTokens] = deep
	acc.LastDailyReset = acc.LastDailyReset.UTC()
	acc.LastMonthlyReset = acc.LastMonthlyReset.UTC()
	acc.CreatedAt = acc.CreatedAt.UTC()
	acc.UpdatedAt = acc.UpdatedAt.UTC()

	rows, err := q.Query(ctx, `SELECT id, dimension, amount, issued_at, expires_at
		FROM usage_reservations WHERE user_id = $1 ORDER BY issued_at`, userID)
	if err != nil {
		return nil, errors.Join(usage.ErrStoreFailure, err)
	}
	defer rows.Close()

	for rows.Next() {
		r := usage.Reservation{UserID: userID}
		var dim string
		if err := rows.Scan(&r.ID, &dim, &r.Amount, &r.IssuedAt, &r.ExpiresAt); err != nil {
			return nil, errors.Join(usage.ErrStoreFailure, err)
		}
		r.Dimension = plans.Dimension(dim)
		r.IssuedAt = r.IssuedAt.UTC()
		r.ExpiresAt = r.ExpiresAt.UTC()
		acc.Pending = append(acc.Pending, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(usage.ErrStoreFailure, err)
	}

	return acc, nil
}

func (s *Store) write(ctx context.Context, tx pgx.Tx, acc *usage.Account, before map[uuid.UUID]struct{}) error {
	args := []any{acc.UserID, string(acc.Plan), acc.LastDailyReset, acc.LastMonthlyReset, acc.UpdatedAt}
	set := "plan = $2, last_daily_reset = $3, last_monthly_reset = $4, updated_at = $5, version = version + 1"
	for _, d := range plans.Dimensions {
		args = append(args, acc.Count(d))
		set += fmt.Sprintf(", %s = $%d", counterColumns[d], len(args))
	}
	if _, err := tx.Exec(ctx, "UPDATE usage_accounts SET "+set+" WHERE user_id = $1", args...); err != nil {
		return errors.Join(usage.ErrStoreFailure, err)
	}

	after := make(map[uuid.UUID]struct{}, len(acc.Pending))
	batch := &pgx.Batch{}
	for _, r := range acc.Pending {
		after[r.ID] = struct{}{}
		if _, ok := before[r.ID]; ok {
			continue
		}
		batch.Queue(`INSERT INTO usage_reservations (id, user_id, dimension, amount, issued_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			r.ID, r.UserID, string(r.Dimension), r.Amount, r.IssuedAt, r.ExpiresAt)
	}

	var gone []uuid.UUID
	for id := range before {
		if _, ok := after[id]; !ok {
			gone = append(gone, id)
		}
	}
	if len(gone) > 0 {
		batch.Queue(`DELETE FROM usage_reservations WHERE id = ANY($1)`, gone)
	}

	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Join(usage.ErrStoreFailure, err)
	}
	return nil
}

// lockTimeout bounds how long a request waits for a busy account row.
const lockTimeout = 5 * time.Second
