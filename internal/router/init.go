package router

import (
	userapp "github.com/foodmanager/user-service/internal/application"
	"github.com/foodmanager/user-service/internal/container"
	pginfra "github.com/foodmanager/user-service/internal/infrastructure/postgres"
	handlers "github.com/foodmanager/user-service/internal/interface/http"
	"github.com/foodmanager/user-service/internal/router/modules"
)

func buildUserModule() *modules.UserModule {
	cfg := container.GetConfig()
	repo := pginfra.NewUserRepository(container.GetPGPool())

	service := userapp.NewService(
		repo,
		container.GetJWT(),
		container.GetGCS(),
		cfg.GCSBucket,
		container.GetRedis(),
		container.GetLogger(),
		container.GetES(),
		cfg.ESUsersIndex,
		container.GetRabbitPub(),
		cfg,
	)

	userHandler := handlers.NewUserHandler(service, container.GetLogger())
	authHandler := handlers.NewAuthHandler(service, container.GetLogger(), cfg.CookieDomain, cfg.CookieSecure)

	return modules.NewUserModule(userHandler, authHandler, container.GetJWT())
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	r.Add(buildUserModule())
	if container.GetConfig().DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
