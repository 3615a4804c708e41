package entity

import "time"

// Role is an authorization role owned by its own collection. User aggregates
// embed only a (RoleID, RoleName) snapshot; this entity set is the source of
// truth for role names.
type Role struct {
	ID        string    `bson:"_id,omitempty"`
	Name      string    `bson:"name"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}
