package indexes_test

import (
	"testing"
	"time"

	"github.com/dalemusser/stratachart/internal/app/system/indexes"
	"github.com/dalemusser/stratachart/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func indexNames(t *testing.T, db *mongo.Database, coll string) map[string]bool {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cur, err := db.Collection(coll).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("list indexes on %s: %v", coll, err)
	}
	var specs []struct {
		Name string `bson:"name"`
	}
	if err := cur.All(ctx, &specs); err != nil {
		t.Fatalf("decode indexes on %s: %v", coll, err)
	}
	names := make(map[string]bool, len(specs))
	for _, s := range specs {
		names[s.Name] = true
	}
	return names
}

func TestEnsureAll_CreatesNamedIndexes(t *testing.T) {
	// SetupTestDB already runs EnsureAll once; a second run must be a no-op.
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll() second run error = %v", err)
	}

	tests := []struct {
		coll  string
		names []string
	}{
		{"history_daily", []string{"uniq_history_scope_stat_date", "idx_history_scope_stat_updated"}},
		{"history_packed", []string{"uniq_packed_scope_stat"}},
		{"live_hourly", []string{"uniq_live_scope_at", "idx_live_updated", "idx_live_at"}},
		{"api_stats", []string{"uniq_stats_type_bucket", "idx_stats_bucket"}},
		{"ingest_ledger", []string{"uniq_ledger_request_id", "idx_ledger_started", "idx_ledger_path_started"}},
	}
	for _, tt := range tests {
		t.Run(tt.coll, func(t *testing.T) {
			got := indexNames(t, db, tt.coll)
			for _, name := range tt.names {
				if !got[name] {
					t.Errorf("index %s missing on %s (have %v)", name, tt.coll, got)
				}
			}
		})
	}
}

func TestEnsureAll_UniqueDailyValue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	doc := bson.M{
		"scope": "domestic",
		"stat":  "confirmed",
		"date":  time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		"value": int64(10),
	}
	coll := db.Collection("history_daily")
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := coll.InsertOne(ctx, bson.M{
		"scope": "domestic",
		"stat":  "confirmed",
		"date":  time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		"value": int64(11),
	})
	if !mongo.IsDuplicateKeyError(err) {
		t.Fatalf("second insert error = %v, want duplicate key", err)
	}
}
