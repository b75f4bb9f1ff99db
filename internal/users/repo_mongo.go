package users

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/tuneder/tuneder/internal/shared"
)

// Field names follow the documents already present in the collection.
const (
	fieldEmail     = "emailadress"
	fieldFavorites = "favorieten"
)

type userDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Name         string        `bson:"name"`
	Email        string        `bson:"emailadress"`
	PasswordHash string        `bson:"password"`
	Avatar       string        `bson:"profielFoto"`
	Favorites    []string      `bson:"favorieten"`
	CreatedAt    time.Time     `bson:"created_at,omitempty"`
}

func (d userDocument) toUser() *User {
	favorites := d.Favorites
	if favorites == nil {
		favorites = []string{}
	}
	return &User{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		DisplayName:  d.Name,
		AvatarRef:    d.Avatar,
		Favorites:    favorites,
		CreatedAt:    d.CreatedAt,
	}
}

// MongoRepository implements Repository on a MongoDB collection.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository wraps the given collection.
func NewMongoRepository(coll *mongo.Collection) *MongoRepository {
	return &MongoRepository{coll: coll}
}

// EnsureIndexes creates the unique email index the repository relies on.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: fieldEmail, Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_emailadress"),
	})
	if err != nil {
		return fmt.Errorf("users: ensure indexes: %w", err)
	}
	return nil
}

// Create inserts a user document.
func (r *MongoRepository) Create(ctx context.Context, user *User) error {
	favorites := user.Favorites
	if favorites == nil {
		favorites = []string{}
	}
	doc := userDocument{
		ID:           bson.NewObjectID(),
		Name:         user.DisplayName,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Avatar:       user.AvatarRef,
		Favorites:    favorites,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return shared.ErrDuplicateEmail
		}
		return fmt.Errorf("users: insert: %w: %w", shared.ErrStoreUnavailable, err)
	}
	user.ID = doc.ID.Hex()
	user.Favorites = favorites
	user.CreatedAt = doc.CreatedAt
	return nil
}

// FindByEmail fetches a user document by email.
func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var doc userDocument
	err := r.coll.FindOne(ctx, bson.D{{Key: fieldEmail, Value: email}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("users: find by email: %w: %w", shared.ErrStoreUnavailable, err)
	}
	return doc.toUser(), nil
}

// ToggleFavorite flips membership with a pipeline update, so the membership
// test and the write happen inside one single-document operation.
func (r *MongoRepository) ToggleFavorite(ctx context.Context, email, artistID string) ([]string, bool, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.D{{Key: fieldFavorites, Value: 1}})

	var doc userDocument
	err := r.coll.FindOneAndUpdate(ctx, bson.D{{Key: fieldEmail, Value: email}}, togglePipeline(artistID), opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, shared.ErrNotFound
		}
		return nil, false, fmt.Errorf("users: toggle favorite: %w: %w", shared.ErrStoreUnavailable, err)
	}
	favorites := doc.Favorites
	if favorites == nil {
		favorites = []string{}
	}
	return favorites, slices.Contains(favorites, artistID), nil
}

// togglePipeline builds the update pipeline. The id is wrapped in $literal so
// values starting with "$" are never read as field paths.
func togglePipeline(artistID string) mongo.Pipeline {
	id := bson.D{{Key: "$literal", Value: artistID}}
	current := bson.D{{Key: "$ifNull", Value: bson.A{"$" + fieldFavorites, bson.A{}}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: fieldFavorites, Value: bson.D{{Key: "$cond", Value: bson.D{
			{Key: "if", Value: bson.D{{Key: "$in", Value: bson.A{id, current}}}},
			{Key: "then", Value: bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: current},
				{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", id}}}},
			}}}},
			{Key: "else", Value: bson.D{{Key: "$concatArrays", Value: bson.A{current, bson.A{id}}}}},
		}}}}}}},
	}
}

var _ Repository = (*MongoRepository)(nil)
