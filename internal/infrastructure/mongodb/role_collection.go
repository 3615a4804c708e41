package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/helioslabs/identity-store/internal/domain/entity"
	"github.com/helioslabs/identity-store/internal/domain/repository"
)

// RoleCollection holds the role entity set. The identity store consumes it
// read-only through the RoleResolver port; Create exists for seeding and
// administration.
type RoleCollection struct {
	coll *mongo.Collection
}

func NewRoleCollection(db *mongo.Database, name string) *RoleCollection {
	return &RoleCollection{coll: db.Collection(name)}
}

// FindRoleByName looks a role up by its exact name. Absent roles are
// (nil, nil).
func (c *RoleCollection) FindRoleByName(ctx context.Context, name string) (*entity.Role, error) {
	r := &entity.Role{}
	err := c.coll.FindOne(ctx, bson.M{"name": name}).Decode(r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Create inserts a new role. The name is unique across the collection.
func (c *RoleCollection) Create(ctx context.Context, r *entity.Role) error {
	if r == nil {
		return fmt.Errorf("%w: role is nil", repository.ErrInvalidArgument)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := c.coll.InsertOne(ctx, r)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", repository.ErrDuplicateIdentity, err)
	}
	return err
}

// All returns every role, name-sorted.
func (c *RoleCollection) All(ctx context.Context) ([]entity.Role, error) {
	cur, err := c.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := []entity.Role{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ repository.RoleResolver = (*RoleCollection)(nil)
