// Package mongo implements the document store on MongoDB. Counter
// increments use $inc and exchange appends use a single $push/$inc/$set
// update, so the atomicity the core relies on comes from the server
// rather than client-side transactions.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/portalize/portal-platform/internal/model"
	"github.com/portalize/portal-platform/internal/store"
)

const (
	collDocuments = "documents"
	collPortals   = "portals"
	collSessions  = "chatSessions"
	collCounters  = "portalAnalytics"
	collViews     = "portalViews"
	collFeedback  = "portalFeedback"
)

// Store is the MongoDB-backed document store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect establishes a MongoDB connection and returns the store.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	s := &Store{
		client: client,
		db:     client.Database(database),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	rangeIdx := mongo.IndexModel{
		Keys: bson.D{{Key: "portal_id", Value: 1}, {Key: "created_at", Value: 1}},
	}
	for _, coll := range []string{collSessions, collViews, collFeedback} {
		if _, err := s.db.Collection(coll).Indexes().CreateOne(ctx, rangeIdx); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", coll, err)
		}
	}
	return nil
}

// PutDocument stores a source document.
func (s *Store) PutDocument(ctx context.Context, doc *model.SourceDocument) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.db.Collection(collDocuments).ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

// GetDocument retrieves a source document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*model.SourceDocument, error) {
	var doc model.SourceDocument
	err := s.db.Collection(collDocuments).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		return nil, mapErr(err)
	}
	return &doc, nil
}

// SetDocumentPortal back-fills portal references onto a source document.
func (s *Store) SetDocumentPortal(ctx context.Context, docID, portalID, portalURL string) error {
	res, err := s.db.Collection(collDocuments).UpdateOne(ctx,
		bson.M{"_id": docID},
		bson.M{"$set": bson.M{
			"portal_id":  portalID,
			"portal_url": portalURL,
			"updated_at": time.Now(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreatePortal stores a new portal.
func (s *Store) CreatePortal(ctx context.Context, p *model.Portal) error {
	_, err := s.db.Collection(collPortals).InsertOne(ctx, p)
	return err
}

// GetPortal retrieves a portal by ID.
func (s *Store) GetPortal(ctx context.Context, id string) (*model.Portal, error) {
	var p model.Portal
	err := s.db.Collection(collPortals).FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

// UpdatePortalStatus transitions a portal's build status.
func (s *Store) UpdatePortalStatus(ctx context.Context, id string, status model.PortalStatus, url string, buildErr *model.BuildError) error {
	set := bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}
	if url != "" {
		set["url"] = url
	}
	update := bson.M{"$set": set}
	if buildErr != nil {
		set["build_error"] = buildErr
	} else {
		update["$unset"] = bson.M{"build_error": ""}
	}

	res, err := s.db.Collection(collPortals).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateSession stores a new chat session.
func (s *Store) CreateSession(ctx context.Context, sess *model.ChatSession) error {
	if sess.Messages == nil {
		sess.Messages = []model.Message{}
	}
	_, err := s.db.Collection(collSessions).InsertOne(ctx, sess)
	return err
}

// GetSession retrieves a chat session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*model.ChatSession, error) {
	var sess model.ChatSession
	err := s.db.Collection(collSessions).FindOne(ctx, bson.M{"_id": id}).Decode(&sess)
	if err != nil {
		return nil, mapErr(err)
	}
	return &sess, nil
}

// MarkSessionExpired flips a session's status to expired.
func (s *Store) MarkSessionExpired(ctx context.Context, id string) error {
	res, err := s.db.Collection(collSessions).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": model.SessionStatusExpired}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AppendExchange appends a user/assistant message pair in one update
// document, so both messages land or neither does.
func (s *Store) AppendExchange(ctx context.Context, sessionID string, user, ai model.Message) error {
	res, err := s.db.Collection(collSessions).UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{
			"$push": bson.M{"messages": bson.M{"$each": []model.Message{user, ai}}},
			"$inc":  bson.M{"message_count": 2},
			"$set":  bson.M{"last_activity_at": ai.CreatedAt},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SessionsInRange returns sessions created within [from, to].
func (s *Store) SessionsInRange(ctx context.Context, portalID string, from, to time.Time) ([]model.ChatSession, error) {
	cur, err := s.db.Collection(collSessions).Find(ctx, rangeFilter(portalID, from, to))
	if err != nil {
		return nil, err
	}
	var out []model.ChatSession
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IncrementCounters atomically adjusts a portal's running counters via
// an upserted $inc, so concurrent increments never lose updates.
func (s *Store) IncrementCounters(ctx context.Context, portalID string, delta store.CounterDelta) error {
	inc := bson.M{}
	if delta.SessionsStarted != 0 {
		inc["sessions_started"] = delta.SessionsStarted
	}
	if delta.Messages != 0 {
		inc["messages"] = delta.Messages
	}
	if delta.Views != 0 {
		inc["views"] = delta.Views
	}
	if len(inc) == 0 {
		return nil
	}

	opts := options.Update().SetUpsert(true)
	_, err := s.db.Collection(collCounters).UpdateOne(ctx,
		bson.M{"_id": portalID},
		bson.M{"$inc": inc, "$set": bson.M{"updated_at": time.Now()}},
		opts,
	)
	return err
}

// GetCounters returns a portal's running counters; missing reads as zero.
func (s *Store) GetCounters(ctx context.Context, portalID string) (*model.PortalCounters, error) {
	var c model.PortalCounters
	err := s.db.Collection(collCounters).FindOne(ctx, bson.M{"_id": portalID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &model.PortalCounters{PortalID: portalID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// RecordView appends a view event.
func (s *Store) RecordView(ctx context.Context, v model.ViewEvent) error {
	_, err := s.db.Collection(collViews).InsertOne(ctx, v)
	return err
}

// ViewsInRange returns view events within [from, to].
func (s *Store) ViewsInRange(ctx context.Context, portalID string, from, to time.Time) ([]model.ViewEvent, error) {
	cur, err := s.db.Collection(collViews).Find(ctx, rangeFilter(portalID, from, to))
	if err != nil {
		return nil, err
	}
	var out []model.ViewEvent
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordFeedback appends a feedback event.
func (s *Store) RecordFeedback(ctx context.Context, f model.FeedbackEvent) error {
	_, err := s.db.Collection(collFeedback).InsertOne(ctx, f)
	return err
}

// FeedbackInRange returns feedback events within [from, to].
func (s *Store) FeedbackInRange(ctx context.Context, portalID string, from, to time.Time) ([]model.FeedbackEvent, error) {
	cur, err := s.db.Collection(collFeedback).Find(ctx, rangeFilter(portalID, from, to))
	if err != nil {
		return nil, err
	}
	var out []model.FeedbackEvent
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping verifies the MongoDB connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func rangeFilter(portalID string, from, to time.Time) bson.M {
	return bson.M{
		"portal_id":  portalID,
		"created_at": bson.M{"$gte": from, "$lte": to},
	}
}

func mapErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}
