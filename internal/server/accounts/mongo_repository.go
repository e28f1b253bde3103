package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/winds-n/member-api/internal/common"
)

const usersCollection = "users"

// NewMongoClient connects to MongoDB and verifies the connection with a ping.
func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing, nil); err != nil {
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	return client, nil
}

// MongoRepository stores user documents in a MongoDB collection, one document
// per account.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(client *mongo.Client, dbName string) *MongoRepository {
	return &MongoRepository{col: client.Database(dbName).Collection(usersCollection)}
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var user User
	err := r.col.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return &user, nil
}

func (r *MongoRepository) FindByUserID(ctx context.Context, userid string) (*User, error) {
	return r.findOne(ctx, bson.M{"userid": userid})
}

func (r *MongoRepository) FindByValidationKey(ctx context.Context, key string) (*User, error) {
	return r.findOne(ctx, bson.M{"emailValidKey": key})
}

func (r *MongoRepository) Insert(ctx context.Context, user *User) error {
	if _, err := r.col.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// Update replaces the whole document. ReplaceOne keeps the original
// full-document write semantics: concurrent writers to the same userid race
// and the last one wins.
func (r *MongoRepository) Update(ctx context.Context, userid string, user *User) (int64, error) {
	res, err := r.col.ReplaceOne(ctx, bson.M{"userid": userid}, user)
	if err != nil {
		return 0, fmt.Errorf("updating user: %w", err)
	}
	return res.MatchedCount, nil
}

func (r *MongoRepository) Remove(ctx context.Context, userid string) (int64, error) {
	res, err := r.col.DeleteOne(ctx, bson.M{"userid": userid})
	if err != nil {
		return 0, fmt.Errorf("removing user: %w", err)
	}
	return res.DeletedCount, nil
}
