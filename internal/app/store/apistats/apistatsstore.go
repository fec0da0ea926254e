// Package apistats stores per-endpoint request statistics in fixed time buckets.
package apistats

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection for API statistics.
const CollectionName = "api_stats"

// StatType identifies the endpoint being tracked.
type StatType string

const (
	StatTypeChartMenu       StatType = "chart_menu"
	StatTypeChartRender     StatType = "chart_render"
	StatTypeChartSelection  StatType = "chart_selection"
	StatTypeHistoryIngest   StatType = "history_ingest"
	StatTypeLiveIngest      StatType = "live_ingest"
	StatTypeCacheInvalidate StatType = "cache_invalidate"
)

// Bucket represents a time bucket of aggregated statistics.
type Bucket struct {
	Bucket    time.Time `bson:"bucket"    json:"bucket"`
	StatType  StatType  `bson:"stat_type" json:"stat_type"`
	Requests  int64     `bson:"requests"  json:"requests"`
	Errors    int64     `bson:"errors"    json:"errors"` // 4xx and 5xx
	TotalMs   int64     `bson:"total_ms"  json:"total_ms"`
	MinMs     int64     `bson:"min_ms"    json:"min_ms"`
	MaxMs     int64     `bson:"max_ms"    json:"max_ms"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// AvgMs returns the average response time in milliseconds.
func (b Bucket) AvgMs() float64 {
	if b.Requests == 0 {
		return 0
	}
	return float64(b.TotalMs) / float64(b.Requests)
}

// Store provides API statistics persistence.
type Store struct {
	c      *mongo.Collection
	bucket time.Duration
	now    func() time.Time
}

// New creates a store that aggregates into buckets of the given size.
func New(db *mongo.Database, bucket time.Duration) *Store {
	if bucket <= 0 {
		bucket = time.Hour
	}
	return &Store{c: db.Collection(CollectionName), bucket: bucket, now: time.Now}
}

// WithClock returns the store with a replaced clock.
func (s *Store) WithClock(now func() time.Time) *Store {
	cp := *s
	cp.now = now
	return &cp
}

// BucketDuration returns the bucket size.
func (s *Store) BucketDuration() time.Duration {
	return s.bucket
}

// Record atomically folds one request into its bucket, creating it if needed.
func (s *Store) Record(ctx context.Context, statType StatType, durationMs int64, isError bool) error {
	now := s.now().UTC()
	bucket := now.Truncate(s.bucket)

	inc := bson.M{"requests": 1, "total_ms": durationMs}
	if isError {
		inc["errors"] = 1
	}
	// $min and $max cover both insert and update, so min_ms/max_ms stay out of $setOnInsert.
	update := bson.M{
		"$inc":         inc,
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"bucket": bucket, "stat_type": statType},
		"$min":         bson.M{"min_ms": durationMs},
		"$max":         bson.M{"max_ms": durationMs},
	}
	_, err := s.c.UpdateOne(ctx,
		bson.M{"bucket": bucket, "stat_type": statType},
		update,
		options.Update().SetUpsert(true),
	)
	return err
}

// Range returns the buckets in [from, to], oldest first. An empty statType
// selects every endpoint.
func (s *Store) Range(ctx context.Context, statType StatType, from, to time.Time) ([]Bucket, error) {
	filter := bson.M{"bucket": bson.M{"$gte": from.UTC(), "$lte": to.UTC()}}
	if statType != "" {
		filter["stat_type"] = statType
	}
	opts := options.Find().SetSort(bson.D{{Key: "bucket", Value: 1}, {Key: "stat_type", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	buckets := []Bucket{}
	if err := cur.All(ctx, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// Summary is the aggregate of one endpoint over a range.
type Summary struct {
	StatType StatType `bson:"_id"      json:"stat_type"`
	Requests int64    `bson:"requests" json:"requests"`
	Errors   int64    `bson:"errors"   json:"errors"`
	TotalMs  int64    `bson:"total_ms" json:"total_ms"`
	MinMs    int64    `bson:"min_ms"   json:"min_ms"`
	MaxMs    int64    `bson:"max_ms"   json:"max_ms"`
}

// ErrorRate returns the error rate as a percentage.
func (a Summary) ErrorRate() float64 {
	if a.Requests == 0 {
		return 0
	}
	return float64(a.Errors) / float64(a.Requests) * 100
}

// Summaries aggregates every endpoint over [from, to], ordered by stat type.
func (s *Store) Summaries(ctx context.Context, from, to time.Time) ([]Summary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"bucket": bson.M{"$gte": from.UTC(), "$lte": to.UTC()}}}},
		{{Key: "$group", Value: bson.M{
			"_id":      "$stat_type",
			"requests": bson.M{"$sum": "$requests"},
			"errors":   bson.M{"$sum": "$errors"},
			"total_ms": bson.M{"$sum": "$total_ms"},
			"min_ms":   bson.M{"$min": "$min_ms"},
			"max_ms":   bson.M{"$max": "$max_ms"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []Summary{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteOlderThan deletes buckets that start before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"bucket": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
