package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/helioslabs/identity-store/internal/domain/entity"
	"github.com/helioslabs/identity-store/internal/domain/repository"
)

// UserCollection implements the backing persistence port over a MongoDB
// collection. Each method is a single driver call; cancellation and
// timeouts come from the ctx unchanged, and transient failures propagate
// to the caller uninterpreted.
type UserCollection struct {
	coll *mongo.Collection
}

func NewUserCollection(db *mongo.Database, name string) *UserCollection {
	return &UserCollection{coll: db.Collection(name)}
}

func (c *UserCollection) Insert(ctx context.Context, u *entity.User) error {
	_, err := c.coll.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", repository.ErrDuplicateIdentity, err)
	}
	return err
}

func (c *UserCollection) Replace(ctx context.Context, u *entity.User) error {
	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", repository.ErrDuplicateIdentity, err)
	}
	return err
}

func (c *UserCollection) Delete(ctx context.Context, id string) error {
	// Removed count is not inspected.
	_, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (c *UserCollection) FindByID(ctx context.Context, id string) (*entity.User, error) {
	return c.findOne(ctx, bson.M{"_id": id})
}

func (c *UserCollection) FindByNormalizedUserName(ctx context.Context, normalized string) (*entity.User, error) {
	return c.findOne(ctx, bson.M{"normalized_username": normalized})
}

func (c *UserCollection) FindByNormalizedEmail(ctx context.Context, normalized string) (*entity.User, error) {
	return c.findOne(ctx, bson.M{"normalized_email": normalized})
}

func (c *UserCollection) FindByLogin(ctx context.Context, provider, providerKey string) (*entity.User, error) {
	return c.findOne(ctx, bson.M{
		"logins": bson.M{"$elemMatch": bson.M{
			"provider":     provider,
			"provider_key": providerKey,
		}},
	})
}

func (c *UserCollection) findOne(ctx context.Context, filter bson.M) (*entity.User, error) {
	u := &entity.User{}
	err := c.coll.FindOne(ctx, filter).Decode(u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (c *UserCollection) IncrementAccessFailedCount(ctx context.Context, id string) error {
	_, err := c.coll.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$inc": bson.M{"access_failed_count": 1}})
	return err
}

func (c *UserCollection) All(ctx context.Context) (repository.UserCursor, error) {
	cur, err := c.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	return &userCursor{cur: cur}, nil
}

// userCursor adapts a driver cursor to the port's iteration contract.
type userCursor struct {
	cur     *mongo.Cursor
	current *entity.User
	err     error
}

func (c *userCursor) Next(ctx context.Context) bool {
	if !c.cur.Next(ctx) {
		c.current = nil
		return false
	}
	u := &entity.User{}
	if err := c.cur.Decode(u); err != nil {
		c.err = err
		c.current = nil
		return false
	}
	c.current = u
	return true
}

func (c *userCursor) Current() *entity.User { return c.current }

func (c *userCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.cur.Err()
}

func (c *userCursor) Close(ctx context.Context) error { return c.cur.Close(ctx) }

var _ repository.UserCollection = (*UserCollection)(nil)
