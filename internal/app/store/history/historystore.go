// internal/app/store/history/historystore.go
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/stratachart/internal/app/system/series"
	"github.com/dalemusser/stratachart/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	DailyCollection  = "history_daily"
	PackedCollection = "history_packed"
)

// Daily is one finalized cumulative value for a statistic on a day.
type Daily struct {
	ID        primitive.ObjectID `bson:"_id"`
	Scope     string             `bson:"scope"`
	Stat      string             `bson:"stat"`
	Date      time.Time          `bson:"date"` // Truncated to day (UTC midnight)
	Value     int64              `bson:"value"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// PackedDoc is the all-time compressed series for one statistic.
type PackedDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	Scope    string             `bson:"scope"`
	Stat     string             `bson:"stat"`
	Series   Packed             `bson:"series"`
	SourceAt time.Time          `bson:"source_at"` // newest updated_at among packed daily docs
	PackedAt time.Time          `bson:"packed_at"`
}

// Pair names one (scope, statistic) series.
type Pair struct {
	Scope string `bson:"scope"`
	Stat  string `bson:"stat"`
}

var (
	// ErrNotFound is returned when no data exists for a series.
	ErrNotFound = errors.New("history not found")
)

// Store provides historical series persistence.
type Store struct {
	daily  *mongo.Collection
	packed *mongo.Collection
}

// New creates a new history store.
func New(db *mongo.Database) *Store {
	return &Store{
		daily:  db.Collection(DailyCollection),
		packed: db.Collection(PackedCollection),
	}
}

// Record upserts the cumulative value of stat on date's day.
func (s *Store) Record(ctx context.Context, scope string, stat models.MainOption, date time.Time, value int64) error {
	day := truncateToDay(date)
	now := time.Now()

	opts := options.Update().SetUpsert(true)
	_, err := s.daily.UpdateOne(ctx, bson.M{
		"scope": scope,
		"stat":  string(stat),
		"date":  day,
	}, bson.M{
		"$set": bson.M{
			"value":      value,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"_id": primitive.NewObjectID(),
		},
	}, opts)
	return err
}

// Fetch returns the series for every stat in mains. An uncompressed fetch
// reads daily documents for the range's lookback plus one earlier day so the
// first delta in the window has a base. A compressed fetch reads the packed
// document, falling back to daily documents when none has been built yet.
// A statistic without data gets an empty series.
func (s *Store) Fetch(ctx context.Context, scope string, mains []models.MainOption, rng string, compressed bool) (models.Batch, error) {
	days, windowed := series.LookbackDays(rng)
	if !windowed && rng != models.RangeAll {
		return nil, fmt.Errorf("history: %w: %q", series.ErrUnknownRange, rng)
	}

	out := make(models.Batch, len(mains))
	for _, m := range mains {
		var (
			raw models.RawSeries
			err error
		)
		if compressed {
			raw, err = s.packedSeries(ctx, scope, m)
			if errors.Is(err, ErrNotFound) {
				raw, err = s.Series(ctx, scope, m, time.Time{})
			}
		} else {
			var from time.Time
			if windowed {
				from, err = s.lookbackStart(ctx, scope, m, days)
			}
			if err == nil {
				raw, err = s.Series(ctx, scope, m, from)
			}
		}
		if errors.Is(err, ErrNotFound) {
			raw, err = models.RawSeries{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("history %s/%s: %w", scope, m, err)
		}
		if compressed && windowed {
			raw = trimLookback(raw, days)
		}
		out[m] = raw
	}
	return out, nil
}

// lookbackStart returns the first day to read: days+1 back from the latest
// sample, counting the latest.
func (s *Store) lookbackStart(ctx context.Context, scope string, stat models.MainOption, days int) (time.Time, error) {
	var last Daily
	opts := options.FindOne().SetSort(bson.D{{Key: "date", Value: -1}})
	err := s.daily.FindOne(ctx, bson.M{"scope": scope, "stat": string(stat)}, opts).Decode(&last)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, err
	}
	return last.Date.AddDate(0, 0, -days), nil
}

// trimLookback keeps the samples on or after days back from the latest.
func trimLookback(raw models.RawSeries, days int) models.RawSeries {
	last, ok := raw.Last()
	if !ok {
		return raw
	}
	from := last.T.AddDate(0, 0, -days)
	for i, p := range raw {
		if !p.T.Before(from) {
			return raw[i:]
		}
	}
	return raw
}

// Series returns the daily samples of stat from the given day onward (all of
// them when from is zero), oldest first.
func (s *Store) Series(ctx context.Context, scope string, stat models.MainOption, from time.Time) (models.RawSeries, error) {
	filter := bson.M{"scope": scope, "stat": string(stat)}
	if !from.IsZero() {
		filter["date"] = bson.M{"$gte": truncateToDay(from)}
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cur, err := s.daily.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []Daily
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	out := make(models.RawSeries, len(docs))
	for i, d := range docs {
		out[i] = models.RawPoint{T: d.Date, Value: d.Value}
	}
	return out, nil
}

func (s *Store) packedSeries(ctx context.Context, scope string, stat models.MainOption) (models.RawSeries, error) {
	var doc PackedDoc
	err := s.packed.FindOne(ctx, bson.M{"scope": scope, "stat": string(stat)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return Decode(doc.Series)
}

// Pairs returns every (scope, stat) that has daily data.
func (s *Store) Pairs(ctx context.Context) ([]Pair, error) {
	pipeline := []bson.M{
		{"$group": bson.M{"_id": bson.M{"scope": "$scope", "stat": "$stat"}}},
		{"$sort": bson.M{"_id.scope": 1, "_id.stat": 1}},
	}
	cur, err := s.daily.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Pair
	for cur.Next(ctx) {
		var doc struct {
			ID Pair `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			continue
		}
		out = append(out, doc.ID)
	}
	return out, cur.Err()
}

// Pack rebuilds the packed document for one series from its daily documents.
// It reports whether the packed document changed; an up-to-date pack is left
// alone.
func (s *Store) Pack(ctx context.Context, p Pair) (bool, error) {
	var newest Daily
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	err := s.daily.FindOne(ctx, bson.M{"scope": p.Scope, "stat": p.Stat}, opts).Decode(&newest)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, ErrNotFound
		}
		return false, err
	}

	var existing PackedDoc
	err = s.packed.FindOne(ctx, bson.M{"scope": p.Scope, "stat": p.Stat}).Decode(&existing)
	switch {
	case err == nil && !newest.UpdatedAt.After(existing.SourceAt):
		return false, nil
	case err != nil && !errors.Is(err, mongo.ErrNoDocuments):
		return false, err
	}

	raw, err := s.Series(ctx, p.Scope, models.MainOption(p.Stat), time.Time{})
	if err != nil {
		return false, err
	}

	_, err = s.packed.UpdateOne(ctx, bson.M{
		"scope": p.Scope,
		"stat":  p.Stat,
	}, bson.M{
		"$set": bson.M{
			"series":    Encode(raw),
			"source_at": newest.UpdatedAt,
			"packed_at": time.Now(),
		},
		"$setOnInsert": bson.M{
			"_id": primitive.NewObjectID(),
		},
	}, options.Update().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return true, nil
}
