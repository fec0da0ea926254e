// internal/app/store/ledger/ledgerstore.go
package ledgerstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName holds failed ingestion requests.
const CollectionName = "ingest_ledger"

// Entry is one failed request against the ingestion API.
type Entry struct {
	ID primitive.ObjectID `bson:"_id" json:"id"`

	// Request identification
	RequestID       string `bson:"request_id"                  json:"request_id"` // Generated UUID
	ClientRequestID string `bson:"client_request_id,omitempty" json:"client_request_id,omitempty"`

	// HTTP request metadata
	Method   string `bson:"method"          json:"method"`
	Path     string `bson:"path"            json:"path"`
	Query    string `bson:"query,omitempty" json:"query,omitempty"`
	RemoteIP string `bson:"remote_ip"       json:"remote_ip"`

	// Request body handling
	RequestBodySize    int64  `bson:"request_body_size"              json:"request_body_size"`
	RequestBodyHash    string `bson:"request_body_hash,omitempty"    json:"request_body_hash,omitempty"`    // SHA256 first 8 chars
	RequestBodyPreview string `bson:"request_body_preview,omitempty" json:"request_body_preview,omitempty"` // Truncated body

	// Response metadata
	StatusCode   int     `bson:"status_code"             json:"status_code"`
	ErrorClass   string  `bson:"error_class"             json:"error_class"` // "validation", "auth", "not_found", "internal"
	ErrorMessage string  `bson:"error_message,omitempty" json:"error_message,omitempty"`
	DurationMs   float64 `bson:"duration_ms"             json:"duration_ms"`

	StartedAt time.Time `bson:"started_at" json:"started_at"`
}

// ClassCount is the number of entries of one error class.
type ClassCount struct {
	ErrorClass string `bson:"_id"   json:"error_class"`
	Count      int64  `bson:"count" json:"count"`
}

// Store provides ledger entry persistence.
type Store struct {
	c *mongo.Collection
}

// New creates a new ledger store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// Create inserts a new ledger entry.
func (s *Store) Create(ctx context.Context, entry Entry) error {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	_, err := s.c.InsertOne(ctx, entry)
	return err
}

// GetByRequestID retrieves a ledger entry by request ID.
func (s *Store) GetByRequestID(ctx context.Context, requestID string) (*Entry, error) {
	var entry Entry
	if err := s.c.FindOne(ctx, bson.M{"request_id": requestID}).Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Recent returns the newest entries first, optionally restricted to a path.
func (s *Store) Recent(ctx context.Context, path string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	filter := bson.M{}
	if path != "" {
		filter["path"] = path
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	entries := []Entry{}
	if err := cur.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CountByClass counts entries per error class in [from, to), most frequent
// first.
func (s *Store) CountByClass(ctx context.Context, from, to time.Time) ([]ClassCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"started_at": bson.M{"$gte": from, "$lt": to}}}},
		{{Key: "$group", Value: bson.M{"_id": "$error_class", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []ClassCount{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteOlderThan deletes entries started before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"started_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
