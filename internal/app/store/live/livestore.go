// internal/app/store/live/livestore.go
package live

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratachart/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the hourly live counter collection.
const Collection = "live_hourly"

// Hourly is the running same-day total for a scope at the top of an hour.
type Hourly struct {
	ID        primitive.ObjectID `bson:"_id"`
	Scope     string             `bson:"scope"`
	At        time.Time          `bson:"at"` // Start of the local hour
	Value     int64              `bson:"value"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

var (
	// ErrNotFound is returned when no live data has been recorded.
	ErrNotFound = errors.New("live data not found")
)

// windowDays maps each comparison window to its distance from today.
var windowDays = map[string]int{
	models.CompareYesterday:   1,
	models.CompareWeekAgo:     7,
	models.CompareTwoWeeksAgo: 14,
	models.CompareMonthAgo:    28,
}

// Store provides live counter persistence. Days are local to loc.
type Store struct {
	c   *mongo.Collection
	loc *time.Location
	now func() time.Time
}

// New creates a new live store. A nil loc means UTC.
func New(db *mongo.Database, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{c: db.Collection(Collection), loc: loc, now: time.Now}
}

// WithClock returns a copy of the store that reads the time from now.
func (s *Store) WithClock(now func() time.Time) *Store {
	cp := *s
	cp.now = now
	return &cp
}

// localHour is the start of the local hour containing at. Truncating the
// absolute time would misalign zones with a non-whole-hour offset.
func localHour(at time.Time, loc *time.Location) time.Time {
	t := at.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
}

// Record upserts the running total for the local hour containing at.
func (s *Store) Record(ctx context.Context, scope string, at time.Time, value int64) error {
	hour := localHour(at, s.loc)
	opts := options.Update().SetUpsert(true)
	_, err := s.c.UpdateOne(ctx, bson.M{
		"scope": scope,
		"at":    hour,
	}, bson.M{
		"$set": bson.M{
			"value":      value,
			"updated_at": time.Now(),
		},
		"$setOnInsert": bson.M{
			"_id": primitive.NewObjectID(),
		},
	}, opts)
	return err
}

// HourlyLive returns today's samples under "today" and each comparison
// window's samples under its identifier. Windows without data are present
// with an empty series.
func (s *Store) HourlyLive(ctx context.Context, scope string) (models.LiveSeries, error) {
	now := s.now().In(s.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	oldest := midnight.AddDate(0, 0, -windowDays[models.CompareMonthAgo])

	opts := options.Find().SetSort(bson.D{{Key: "at", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{
		"scope": scope,
		"at":    bson.M{"$gte": oldest, "$lt": midnight.AddDate(0, 0, 1)},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []Hourly
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	byDay := make(map[string]string, len(windowDays)+1)
	byDay[midnight.Format(time.DateOnly)] = models.LiveToday
	out := models.LiveSeries{models.LiveToday: models.RawSeries{}}
	for w, d := range windowDays {
		byDay[midnight.AddDate(0, 0, -d).Format(time.DateOnly)] = w
		out[w] = models.RawSeries{}
	}
	for _, d := range docs {
		key, ok := byDay[d.At.In(s.loc).Format(time.DateOnly)]
		if !ok {
			continue
		}
		out[key] = append(out[key], models.RawPoint{T: d.At.In(s.loc), Value: d.Value})
	}
	return out, nil
}

// LastUpdate returns the newest write time across all scopes.
func (s *Store) LastUpdate(ctx context.Context) (time.Time, error) {
	var doc Hourly
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	if err := s.c.FindOne(ctx, bson.M{}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, err
	}
	return doc.UpdatedAt, nil
}

// DeleteOlderThan deletes samples older than cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.c.DeleteMany(ctx, bson.M{
		"at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// Retention is how far back live samples are still needed.
func Retention() time.Duration {
	return time.Duration(windowDays[models.CompareMonthAgo]+1) * 24 * time.Hour
}
