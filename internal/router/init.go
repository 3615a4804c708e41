package router

import (
	userapp "github.com/helioslabs/identity-store/internal/application"
	"github.com/helioslabs/identity-store/internal/container"
	"github.com/helioslabs/identity-store/internal/infrastructure/mongodb"
	handlers "github.com/helioslabs/identity-store/internal/interface/http"
	"github.com/helioslabs/identity-store/internal/router/modules"
	"github.com/helioslabs/identity-store/internal/store"
)

// InitModules wires the store, the application service, and the handlers
// from the container singletons, then registers every feature module.
// Called once during startup.
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	db := container.GetMongoDB()

	users := mongodb.NewUserCollection(db, cfg.UsersCollection)
	roles := mongodb.NewRoleCollection(db, cfg.RolesCollection)
	st := store.NewUserStore(users, roles)

	svc := userapp.NewService(
		st,
		container.GetJWT(),
		container.GetGCS(),
		cfg.GCSBucket,
		container.GetRedis(),
		container.GetLogger(),
		container.GetES(),
		cfg.ESUsersIndex,
		cfg.MaxAccessFailed,
		cfg.LockoutWindow,
	)

	userHandler := handlers.NewUserHandler(svc, container.GetJWT(), container.GetLogger(), cfg.CookieDomain, cfg.CookieSecure)
	authHandler := handlers.NewAuthHandler(svc, container.GetRedis(), container.GetLogger(), cfg, container.GetRabbitPub())
	adminHandler := handlers.NewAdminHandler(svc, roles, container.GetLogger())

	r.Add(modules.New(userHandler, container.GetJWT()))
	r.Add(modules.NewAuthModule(authHandler, container.GetJWT()))
	r.Add(modules.NewAdminModule(adminHandler, svc, container.GetJWT()))
	r.Add(modules.NewDebugModule())
}
