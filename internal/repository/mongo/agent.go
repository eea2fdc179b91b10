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

type agentDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d agentDocument) toDomain() domain.Agent {
	return domain.Agent{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.Password,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// AgentRepository implements domain.AgentRepository
type AgentRepository struct {
	coll *mongo.Collection
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(db *DB) *AgentRepository {
	return &AgentRepository{coll: db.Database.Collection(agentsCollection)}
}

func (r *AgentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	doc := agentDocument{
		Name:      agent.Name,
		Email:     agent.Email,
		Password:  agent.PasswordHash,
		CreatedAt: agent.CreatedAt,
		UpdatedAt: agent.UpdatedAt,
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrEmailTaken
		}
		return wrapErr("create agent", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	agent.ID = oid.Hex()
	return nil
}

// GetByID returns nil when the agent does not exist
func (r *AgentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// GetByEmail returns nil when the agent does not exist
func (r *AgentRepository) GetByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *AgentRepository) findOne(ctx context.Context, filter bson.M) (*domain.Agent, error) {
	var doc agentDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, wrapErr("get agent", err)
	}
	agent := doc.toDomain()
	return &agent, nil
}

// List returns agents in provisioning order
func (r *AgentRepository) List(ctx context.Context) ([]domain.Agent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, wrapErr("list agents", err)
	}

	var docs []agentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrapErr("decode agents", err)
	}

	agents := make([]domain.Agent, 0, len(docs))
	for _, d := range docs {
		agents = append(agents, d.toDomain())
	}
	return agents, nil
}

func (r *AgentRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrAgentNotFound
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"password": passwordHash, "updatedAt": updatedAt}},
	)
	if err != nil {
		return wrapErr("update agent password", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAgentNotFound
	}
	return nil
}

func (r *AgentRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrAgentNotFound
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return wrapErr("delete agent", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrAgentNotFound
	}
	return nil
}
