package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/NutriGoat/internal/types"
)

// Mirror receives a copy of every appended record.
type Mirror interface {
	Mirror(ctx context.Context, records []*types.NutritionRecord) error
	Close() error
	Name() string
}

// MongoMirror copies records into a MongoDB collection.
type MongoMirror struct {
	client     *mongo.Client
	collection *mongo.Collection
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoMirror connects to MongoDB and pings it.
func NewMongoMirror(uri, database, collection string, logger *slog.Logger) (*MongoMirror, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoMirror{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_mirror"),
	}, nil
}

func (m *MongoMirror) Name() string { return "mongodb" }

func (m *MongoMirror) Mirror(ctx context.Context, records []*types.NutritionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := make([]any, len(records))
	for i, r := range records {
		docs[i] = r
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := m.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongodb insert: %w", err)
	}

	m.count += len(records)
	m.logger.Debug("records mirrored", "count", len(records), "total", m.count)
	return nil
}

func (m *MongoMirror) Close() error {
	m.logger.Info("mongodb mirror closing", "total_records", m.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// --- Mirrored Store ---

// MirroredStore writes to a primary store and copies each append to mirrors.
// Reads always go to the primary; mirror failures are logged, never returned.
type MirroredStore struct {
	Store
	mirrors []Mirror
	logger  *slog.Logger
}

// NewMirroredStore wraps primary with the given mirrors.
func NewMirroredStore(primary Store, logger *slog.Logger, mirrors ...Mirror) *MirroredStore {
	return &MirroredStore{
		Store:   primary,
		mirrors: mirrors,
		logger:  logger.With("component", "mirrored_storage"),
	}
}

func (s *MirroredStore) Name() string { return s.Store.Name() + "+mirror" }

func (s *MirroredStore) Append(ctx context.Context, records []*types.NutritionRecord) error {
	if err := s.Store.Append(ctx, records); err != nil {
		return err
	}
	for _, m := range s.mirrors {
		if err := m.Mirror(ctx, records); err != nil {
			s.logger.Error("mirror write failed", "mirror", m.Name(), "error", err)
		}
	}
	return nil
}

func (s *MirroredStore) Close() error {
	firstErr := s.Store.Close()
	for _, m := range s.mirrors {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
