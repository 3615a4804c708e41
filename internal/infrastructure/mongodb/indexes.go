package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the uniqueness constraints the identity store relies
// on: normalized username, normalized email, the (provider, provider_key)
// login pair, and the role name. It is process-wide setup, invoked once by
// the owning process at startup, never on the per-request path.
func EnsureIndexes(ctx context.Context, db *mongo.Database, usersColl, rolesColl string) error {
	users := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "normalized_username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "normalized_email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "logins.provider", Value: 1},
				{Key: "logins.provider_key", Value: 1},
			},
			// Sparse: aggregates without logins must not collide on the
			// missing array.
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}
	if _, err := db.Collection(usersColl).Indexes().CreateMany(ctx, users); err != nil {
		return err
	}

	roles := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := db.Collection(rolesColl).Indexes().CreateMany(ctx, roles)
	return err
}
