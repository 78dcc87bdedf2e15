package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/BaSui01/parley/types"
)

// mongoSessionDoc mirrors sessionRow for the document backend: indexed
// list-view fields plus the full JSON payload.
type mongoSessionDoc struct {
	ID           string     `bson:"_id"`
	Status       string     `bson:"status"`
	Paradigm     string     `bson:"paradigm"`
	Topology     string     `bson:"topology"`
	MessageCount int        `bson:"message_count"`
	StartedAt    time.Time  `bson:"started_at"`
	EndedAt      *time.Time `bson:"ended_at,omitempty"`
	Payload      []byte     `bson:"payload"`
}

type mongoPresetDoc struct {
	Filename string `bson:"_id"`
	Name     string `bson:"name"`
	Payload  []byte `bson:"payload"`
}

// MongoStore persists sessions and presets in MongoDB.
type MongoStore struct {
	client   *mongo.Client
	sessions *mongo.Collection
	presets  *mongo.Collection
	logger   *zap.Logger
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(cfg Config, logger *zap.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	dbName := cfg.Mongo.Database
	if dbName == "" {
		dbName = "parley"
	}
	db := client.Database(dbName)
	return &MongoStore{
		client:   client,
		sessions: db.Collection("sessions"),
		presets:  db.Collection("presets"),
		logger:   logger.With(zap.String("component", "mongo_store")),
	}, nil
}

func (s *MongoStore) SaveSession(ctx context.Context, rec *types.SessionRecord) error {
	if rec == nil || rec.SessionID == "" {
		return ErrInvalidInput
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	doc := mongoSessionDoc{
		ID:           rec.SessionID,
		Status:       string(rec.Status),
		Paradigm:     string(rec.Config.Paradigm),
		Topology:     string(rec.Config.Topology.Type),
		MessageCount: len(rec.Transcript),
		StartedAt:    rec.StartedAt,
		EndedAt:      rec.EndedAt,
		Payload:      payload,
	}
	_, err = s.sessions.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: rec.SessionID}},
		doc,
		options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) GetSession(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	var doc mongoSessionDoc
	err := s.sessions.FindOne(ctx, bson.D{{Key: "_id", Value: sessionID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec types.SessionRecord
	if err := json.Unmarshal(doc.Payload, &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &rec, nil
}

func (s *MongoStore) ListSessions(ctx context.Context) ([]types.SessionSummary, error) {
	cursor, err := s.sessions.Find(ctx, bson.D{},
		options.Find().
			SetSort(bson.D{{Key: "started_at", Value: -1}, {Key: "_id", Value: 1}}).
			SetProjection(bson.D{{Key: "payload", Value: 0}}))
	if err != nil {
		return nil, err
	}
	var docs []mongoSessionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]types.SessionSummary, 0, len(docs))
	for _, doc := range docs {
		out = append(out, types.SessionSummary{
			SessionID:    doc.ID,
			StartedAt:    doc.StartedAt,
			EndedAt:      doc.EndedAt,
			Paradigm:     types.Paradigm(doc.Paradigm),
			Topology:     types.TopologyType(doc.Topology),
			Status:       types.SessionStatus(doc.Status),
			MessageCount: doc.MessageCount,
		})
	}
	return out, nil
}

func (s *MongoStore) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.sessions.DeleteOne(ctx, bson.D{{Key: "_id", Value: sessionID}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) SavePreset(ctx context.Context, p *types.Preset) (string, error) {
	if p == nil {
		return "", ErrInvalidInput
	}
	filename, err := PresetFilename(p.Name)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal preset: %w", err)
	}
	doc := mongoPresetDoc{Filename: filename, Name: p.Name, Payload: payload}
	_, err = s.presets.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: filename}},
		doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return "", err
	}
	return filename, nil
}

func (s *MongoStore) GetPreset(ctx context.Context, name string) (*types.Preset, error) {
	filename, err := PresetFilename(name)
	if err != nil {
		return nil, err
	}
	var doc mongoPresetDoc
	err = s.presets.FindOne(ctx, bson.D{{Key: "_id", Value: filename}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var p types.Preset
	if err := json.Unmarshal(doc.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode preset %s: %w", filename, err)
	}
	return &p, nil
}

func (s *MongoStore) ListPresets(ctx context.Context) ([]string, error) {
	cursor, err := s.presets.Find(ctx, bson.D{},
		options.Find().
			SetSort(bson.D{{Key: "_id", Value: 1}}).
			SetProjection(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []mongoPresetDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Filename)
	}
	return out, nil
}

func (s *MongoStore) DeletePreset(ctx context.Context, name string) error {
	filename, err := PresetFilename(name)
	if err != nil {
		return err
	}
	res, err := s.presets.DeleteOne(ctx, bson.D{{Key: "_id", Value: filename}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ SessionStore = (*MongoStore)(nil)
