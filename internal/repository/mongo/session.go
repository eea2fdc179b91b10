package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type messageDocument struct {
	Sender    string    `bson:"sender"`
	Text      string    `bson:"text"`
	Timestamp time.Time `bson:"timestamp"`
}

type sessionDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	User      string             `bson:"user"`
	Agent     string             `bson:"agent"`
	Messages  []messageDocument  `bson:"messages"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d sessionDocument) toDomain() domain.ChatSession {
	messages := make([]domain.Message, 0, len(d.Messages))
	for _, m := range d.Messages {
		messages = append(messages, domain.Message{
			Sender:    m.Sender,
			Text:      m.Text,
			Timestamp: m.Timestamp.UTC(),
		})
	}
	return domain.ChatSession{
		ID:        d.ID.Hex(),
		User:      d.User,
		Agent:     d.Agent,
		Messages:  messages,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// newestFirst orders by creation time with the ObjectID as a tiebreak
var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

// SessionRepository implements domain.SessionRepository over one document per session
type SessionRepository struct {
	db   *DB
	coll *mongo.Collection
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db, coll: db.Database.Collection(chatsCollection)}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	doc := sessionDocument{
		User:      session.User,
		Agent:     session.Agent,
		Messages:  []messageDocument{},
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return wrapErr("create session", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	session.ID = oid.Hex()
	session.Messages = []domain.Message{}
	return nil
}

// AppendMessage is a single-document $push, serialized by MongoDB per document
func (r *SessionRepository) AppendMessage(ctx context.Context, sessionID string, msg domain.Message) error {
	oid, err := primitive.ObjectIDFromHex(sessionID)
	if err != nil {
		return domain.ErrSessionNotFound
	}

	update := bson.M{
		"$push": bson.M{"messages": messageDocument{
			Sender:    msg.Sender,
			Text:      msg.Text,
			Timestamp: msg.Timestamp,
		}},
		"$set": bson.M{"updatedAt": msg.Timestamp},
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return wrapErr("append message", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.ChatSession, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrSessionNotFound
	}

	var doc sessionDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, wrapErr("get session", err)
	}

	s := doc.toDomain()
	return &s, nil
}

func (r *SessionRepository) LatestByUser(ctx context.Context, user string) (*domain.ChatSession, error) {
	var doc sessionDocument
	err := r.coll.FindOne(ctx, bson.M{"user": user}, options.FindOne().SetSort(newestFirst)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, wrapErr("get latest session", err)
	}

	s := doc.toDomain()
	return &s, nil
}

func (r *SessionRepository) List(ctx context.Context) ([]domain.ChatSession, error) {
	return r.find(ctx, bson.M{})
}

func (r *SessionRepository) ListByAgent(ctx context.Context, agentEmail string) ([]domain.ChatSession, error) {
	return r.find(ctx, bson.M{"agent": agentEmail})
}

func (r *SessionRepository) find(ctx context.Context, filter bson.M) ([]domain.ChatSession, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, wrapErr("list sessions", err)
	}

	var docs []sessionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrapErr("decode sessions", err)
	}

	sessions := make([]domain.ChatSession, 0, len(docs))
	for _, d := range docs {
		sessions = append(sessions, d.toDomain())
	}
	return sessions, nil
}

// CountByAgent runs one grouped aggregation over the chats collection
func (r *SessionRepository) CountByAgent(ctx context.Context, agentEmails []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(agentEmails))
	if len(agentEmails) == 0 {
		return counts, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"agent": bson.M{"$in": agentEmails}}}},
		{{Key: "$group", Value: bson.M{"_id": "$agent", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrapErr("count sessions by agent", err)
	}

	var rows []struct {
		Agent string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, wrapErr("decode session counts", err)
	}

	for _, row := range rows {
		counts[row.Agent] = row.Count
	}
	return counts, nil
}

func (r *SessionRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
