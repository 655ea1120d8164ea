package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/foodmanager/user-service/internal/container"
	handlers "github.com/foodmanager/user-service/internal/interface/http"
	"github.com/foodmanager/user-service/internal/interface/middleware"
	"github.com/foodmanager/user-service/pkg/helpers"
)

// UserModule wires user lifecycle and credential HTTP handlers into routes.
// Public: POST /api/users, POST /api/login, POST /api/refresh
// Protected: user CRUD, password change, search, avatar upload, logout.

type UserModule struct {
	Users *handlers.UserHandler
	Auth  *handlers.AuthHandler
	JWT   *helpers.JWTManager
}

func NewUserModule(users *handlers.UserHandler, auth *handlers.AuthHandler, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Users: users, Auth: auth, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	// Public with rate limiting
	registerLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)  // 10 req/min per IP
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)     // 10 req/min per IP
	refreshLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), nil)   // 60 req/min per IP

	rg.POST("/users", registerLimiter, m.Users.Register)
	rg.POST("/login", loginLimiter, m.Auth.Login)
	rg.POST("/refresh", refreshLimiter, m.Auth.Refresh)

	// Protected
	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	auth.Use(
		middleware.RateLimit(container.GetRedis(), 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.POST("/logout", m.Auth.Logout)
		auth.GET("/users", m.Users.List)
		auth.GET("/users/search", m.Users.Search)
		auth.GET("/users/:id", m.Users.Get)
		auth.PUT("/users/:id", m.Users.Update)
		auth.PATCH("/users/:id", m.Users.Patch)
		auth.DELETE("/users/:id", m.Users.Delete)
		auth.PATCH("/users/:id/password", m.Users.ChangePassword)
		auth.POST("/users/:id/avatar", m.Users.UploadAvatar)
	}
}
