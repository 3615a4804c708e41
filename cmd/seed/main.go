package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/helioslabs/identity-store/config"
	"github.com/helioslabs/identity-store/internal/domain/entity"
	"github.com/helioslabs/identity-store/internal/domain/repository"
	"github.com/helioslabs/identity-store/internal/infrastructure/mongodb"
	"github.com/helioslabs/identity-store/internal/store"
	"github.com/helioslabs/identity-store/pkg/helpers"
)

// Seeds the base roles and a demo admin account. Safe to run repeatedly:
// existing roles and users are left in place.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoMaxPoolSize)
	if err != nil {
		log.Fatalf("failed to connect to mongodb: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	db := client.Database(cfg.MongoDatabase)

	if err := mongodb.EnsureIndexes(ctx, db, cfg.UsersCollection, cfg.RolesCollection); err != nil {
		log.Fatalf("failed to ensure indexes: %v", err)
	}

	roles := mongodb.NewRoleCollection(db, cfg.RolesCollection)
	for _, name := range []string{"admin", "user"} {
		if err := roles.Create(ctx, &entity.Role{Name: name}); err != nil {
			if errors.Is(err, repository.ErrDuplicateIdentity) {
				fmt.Printf("role exists: %s\n", name)
				continue
			}
			log.Fatalf("failed to create role %s: %v", name, err)
		}
		fmt.Printf("role created: %s\n", name)
	}

	users := mongodb.NewUserCollection(db, cfg.UsersCollection)
	st := store.NewUserStore(users, roles)

	username := "demoAdmin"
	email := "admin@example.com"
	password := "password123"

	existing, err := st.FindByUserName(ctx, username)
	if err != nil {
		log.Fatalf("lookup failed: %v", err)
	}
	if existing != nil {
		fmt.Printf("user exists: id=%s username=%s\n", existing.ID, existing.UserName)
		return
	}

	hash, err := helpers.HashPassword(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	u := &entity.User{UserName: username, EmailAddress: email}
	if err := st.SetPasswordHash(u, hash); err != nil {
		log.Fatalf("failed to set password: %v", err)
	}
	if err := st.SetSecurityStamp(u, uuid.NewString()); err != nil {
		log.Fatalf("failed to set security stamp: %v", err)
	}
	if err := st.Create(ctx, u); err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	if err := st.AddToRole(ctx, u, "admin"); err != nil {
		log.Fatalf("failed to grant admin role: %v", err)
	}
	if err := st.SetEmailConfirmed(u, true); err != nil {
		log.Fatalf("failed to confirm email: %v", err)
	}
	if err := st.Update(ctx, u); err != nil {
		log.Fatalf("failed to persist user: %v", err)
	}

	fmt.Printf("seeded admin: id=%s username=%s email=%s password=%s\n", u.ID, u.UserName, u.EmailAddress, password)
}
