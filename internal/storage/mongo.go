package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

const (
	sessionsCollection = "sessions"
	turnsCollection    = "turns"
	countersCollection = "turn_counters"

	mongoTimeout = 10 * time.Second
)

// MongoStorage implements Storage using MongoDB.
type MongoStorage struct {
	mongoLog
	client *mongo.Client
}

// NewMongoStorage connects to MongoDB and verifies the connection.
func NewMongoStorage(ctx context.Context, uri, database string) (*MongoStorage, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongodb uri is required")
	}
	if database == "" {
		database = "agora"
	}

	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoStorage{
		mongoLog: mongoLog{db: client.Database(database)},
		client:   client,
	}, nil
}

// Initialize creates the indexes used for ordered replay.
func (s *MongoStorage) Initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	_, err := s.db.Collection(turnsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "seq", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create turn index: %w", err)
	}

	_, err = s.db.Collection(sessionsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create session index: %w", err)
	}

	return nil
}

// Close disconnects the client.
func (s *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks the primary is reachable.
func (s *MongoStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Acquire starts a client session; every operation on the returned Log runs inside it.
func (s *MongoStorage) Acquire(ctx context.Context) (Log, func(), error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to start mongodb session: %w", err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() { sess.EndSession(context.Background()) })
	}
	return &mongoLog{db: s.db, sess: sess}, release, nil
}

// ListSessions returns session summaries, newest first.
func (s *MongoStorage) ListSessions(ctx context.Context, limit, offset int) ([]*core.SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := s.db.Collection(sessionsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []core.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}

	summaries := make([]*core.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		count, err := s.db.Collection(turnsCollection).CountDocuments(ctx, bson.M{"session_id": sess.ID})
		if err != nil {
			return nil, fmt.Errorf("failed to count turns: %w", err)
		}
		summaries = append(summaries, &core.SessionSummary{
			ID:        sess.ID,
			CreatedAt: sess.CreatedAt,
			TurnCount: int(count),
		})
	}

	return summaries, nil
}

// DeleteSession removes a session, its turns and its sequence counter.
func (s *MongoStorage) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.Collection(turnsCollection).DeleteMany(ctx, bson.M{"session_id": id}); err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	if _, err := s.db.Collection(countersCollection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete turn counter: %w", err)
	}
	if _, err := s.db.Collection(sessionsCollection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// mongoLog implements Log, optionally bound to a client session.
type mongoLog struct {
	db   *mongo.Database
	sess mongo.Session
}

func (l *mongoLog) bind(ctx context.Context) context.Context {
	if l.sess == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, l.sess)
}

// CreateSession creates a new session.
func (l *mongoLog) CreateSession(ctx context.Context) (*core.Session, error) {
	session := &core.Session{
		ID:        core.NewSessionID(),
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if _, err := l.db.Collection(sessionsCollection).InsertOne(l.bind(ctx), session); err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	return session, nil
}

// GetSession retrieves a session by ID.
func (l *mongoLog) GetSession(ctx context.Context, id string) (*core.Session, error) {
	var session core.Session
	err := l.db.Collection(sessionsCollection).FindOne(l.bind(ctx), bson.M{"_id": id}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// AppendTurn adds a turn, drawing its sequence number from a per-session counter.
func (l *mongoLog) AppendTurn(ctx context.Context, turn *core.Turn) error {
	ctx = l.bind(ctx)

	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if turn.ID == "" {
		turn.ID = core.NewTurnID(turn.CreatedAt)
	}

	n, err := l.db.Collection(sessionsCollection).CountDocuments(ctx,
		bson.M{"_id": turn.SessionID},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, turn.SessionID)
	}

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err = l.db.Collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": turn.SessionID},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return fmt.Errorf("failed to allocate turn sequence: %w", err)
	}
	turn.Seq = counter.Seq

	if _, err := l.db.Collection(turnsCollection).InsertOne(ctx, turn); err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}

	return nil
}

// RecentTurns returns the newest limit turns for a session, oldest first.
func (l *mongoLog) RecentTurns(ctx context.Context, sessionID string, limit int) ([]*core.Turn, error) {
	if limit <= 0 {
		return l.AllTurns(ctx, sessionID)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: -1}}).
		SetLimit(int64(limit))

	turns, err := l.findTurns(ctx, sessionID, opts)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// AllTurns returns all turns for a session, oldest first.
func (l *mongoLog) AllTurns(ctx context.Context, sessionID string) ([]*core.Turn, error) {
	return l.findTurns(ctx, sessionID, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
}

func (l *mongoLog) findTurns(ctx context.Context, sessionID string, opts *options.FindOptions) ([]*core.Turn, error) {
	ctx = l.bind(ctx)

	cursor, err := l.db.Collection(turnsCollection).Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get turns: %w", err)
	}
	defer cursor.Close(ctx)

	var turns []*core.Turn
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, fmt.Errorf("failed to decode turns: %w", err)
	}
	return turns, nil
}
