// Package mongostore implements usage.Store on MongoDB.
//
// Each account is one document keyed by the user id, pending reservations
// embedded. Writes are compare-and-swap on the document's version field and
// are retried when another request for the same account won the race.
package mongostore

import (
	"context"
	"errors"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/gengate/pkg/plans"
	"github.com/dmitrymomot/gengate/pkg/usage"
)

type Store struct {
	coll       *mongo.Collection
	limits     usage.Limits
	opts       usage.Options
	maxRetries int
}

var _ usage.Store = (*Store)(nil)

// New returns a MongoDB-backed store using cfg.Database and cfg.Collection.
func New(client *mongo.Client, limits usage.Limits, cfg Config, opts ...usage.Option) *Store {
	return &Store{
		coll:       client.Database(cfg.Database).Collection(cfg.Collection),
		limits:     limits,
		opts:       usage.NewOptions(opts...),
		maxRetries: max(cfg.MaxCASRetries, 1),
	}
}

// EnsureIndexes creates the index used by PurgeExpired.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "pending.expires_at", Value: 1}},
	})
	if err != nil {
		return errors.Join(usage.ErrStoreFailure, err)
	}
	return nil
}

// GetOrCreate upserts a FREE account with $setOnInsert and returns the stored document.
func (s *Store) GetOrCreate(ctx context.Context, userID int64, id usage.Identity) (*usage.Account, error) {
	fields, err := insertFields(usage.NewAccount(userID, id, s.opts.Now()))
	if err != nil {
		return nil, errors.Join(usage.ErrStoreFailure, err)
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: userID}},
		bson.D{{Key: "$setOnInsert", Value: fields}},
		options.UpdateOne().SetUpsert(true),
	)
	switch {
	case mongo.IsDuplicateKeyError(err):
		// a concurrent upsert inserted it first
	case err != nil:
		return nil, errors.Join(usage.ErrStoreFailure, err)
	case res.UpsertedCount == 1:
		s.opts.Logger.DebugContext(ctx, "account created", slog.Int64("user_id", userID))
	}

	return s.load(ctx, userID)
}

// CheckAndReserve runs the quota gate under a version CAS.
func (s *Store) CheckAndReserve(ctx context.Context, userID int64, d plans.Dimension, amount int64) (usage.Reservation, error) {
	var res usage.Reservation
	err := s.mutate(ctx, userID, func(acc *usage.Account) error {
		r, err := usage.Reserve(acc, s.limits, d, amount, s.opts.Now(), s.opts.ReservationTTL)
		res = r
		return err
	})
	return res, err
}

// Commit applies a reservation once.
func (s *Store) Commit(ctx context.Context, r usage.Reservation) error {
	err := s.mutate(ctx, r.UserID, func(acc *usage.Account) error {
		return usage.Apply(acc, r, s.opts.Now())
	})
	if errors.Is(err, usage.ErrAccountNotFound) {
		return usage.ErrReservationNotFound
	}
	return err
}

// Release pulls the reservation from the document without charging it.
func (s *Store) Release(ctx context.Context, r usage.Reservation) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: r.UserID}},
		bson.D{
			{Key: "$pull", Value: bson.D{{Key: "pending", Value: bson.D{{Key: "id", Value: r.ID.String()}}}}},
			{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
		},
	)
	if err != nil {
		return errors.Join(usage.ErrStoreFailure, err)
	}
	return nil
}

// SetPlan changes the tier and keeps counters.
func (s *Store) SetPlan(ctx context.Context, userID int64, tier plans.Tier) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: userID}},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "plan", Value: string(tier)}, {Key: "updated_at", Value: s.opts.Now()}}},
			{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
		},
	)
	if err != nil {
		return errors.Join(usage.ErrStoreFailure, err)
	}
	if res.MatchedCount == 0 {
		return usage.ErrAccountNotFound
	}
	return nil
}

// Snapshot returns the stored account with due resets applied to the copy.
func (s *Store) Snapshot(ctx context.Context, userID int64) (*usage.Account, error) {
	acc, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	usage.ApplyResets(acc, now)
	acc.DropExpired(now)
	return acc, nil
}

// PurgeExpired pulls every reservation past its TTL.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	now := s.opts.Now()
	cur, err := s.coll.Find(ctx,
		bson.D{{Key: "pending.expires_at", Value: bson.D{{Key: "$lte", Value: now}}}},
		options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return 0, errors.Join(usage.ErrStoreFailure, err)
	}

	var ids []struct {
		UserID int64 `bson:"_id"`
	}
	if err := cur.All(ctx, &ids); err != nil {
		return 0, errors.Join(usage.ErrStoreFailure, err)
	}

	total := 0
	for _, id := range ids {
		dropped := 0
		err := s.mutate(ctx, id.UserID, func(acc *usage.Account) error {
			dropped = acc.DropExpired(now)
			return nil
		})
		if err != nil && !errors.Is(err, usage.ErrAccountNotFound) {
			return total, err
		}
		total += dropped
	}
	return total, nil
}

// mutate reads the document, applies fn and replaces it only if the version
// is unchanged. Quota refusals are persisted too so a reset applied before the
// refusal sticks.
func (s *Store) mutate(ctx context.Context, userID int64, fn func(*usage.Account) error) error {
	for range s.maxRetries {
		acc, err := s.load(ctx, userID)
		if err != nil {
			return err
		}
		version := acc.Version

		fnErr := fn(acc)
		if fnErr != nil && !usage.IsRefusal(fnErr) {
			return fnErr
		}

		acc.Version = version + 1
		res, err := s.coll.ReplaceOne(ctx,
			bson.D{{Key: "_id", Value: userID}, {Key: "version", Value: version}},
			toDoc(acc),
		)
		if err != nil {
			return errors.Join(usage.ErrStoreFailure, err)
		}
		if res.MatchedCount == 1 {
			return fnErr
		}
	}
	return usage.ErrConcurrentUpdate
}

// insertFields renders a new account without _id, which the upsert filter supplies.
func insertFields(acc *usage.Account) (bson.M, error) {
	raw, err := bson.Marshal(toDoc(acc))
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	delete(m, "_id")
	return m, nil
}

func (s *Store) load(ctx context.Context, userID int64) (*usage.Account, error) {
	var doc accountDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, usage.ErrAccountNotFound
	}
	if err != nil {
		return nil, errors.Join(usage.ErrStoreFailure, err)
	}
	return doc.toAccount(), nil
}
