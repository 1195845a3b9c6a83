package server

import (
	"net/http"
	"time"

	"account-directory/internal/config"
	"account-directory/internal/handler"
	"account-directory/internal/middleware"
	"account-directory/internal/repository"
	"account-directory/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	log    *zap.Logger
}

func NewServer(db *sqlx.DB, rdb *redis.Client, cfg *config.Config, log *zap.Logger) *Server {
	router := gin.Default()

	s := &Server{router: router, log: log}
	s.setupRoutes(db, rdb, cfg)

	return s
}

func (s *Server) setupRoutes(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) {
	ttl := time.Duration(cfg.Session.TTLHours) * time.Hour

	userRepo := repository.NewUserRepository(db, s.log)
	sessionRepo := repository.NewSessionRepository(rdb, ttl, s.log)

	authService := service.NewAuthService(userRepo, sessionRepo, []byte(cfg.Session.JWTSecret), ttl, s.log)
	userService := service.NewUserService(userRepo, sessionRepo, s.log)

	authHandler := handler.NewAuthHandler(authService, s.log)
	userHandler := handler.NewUserHandler(userService, s.log)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	s.router.POST("/login", authHandler.Login)

	authed := s.router.Group("/", middleware.Authenticate(authService, s.log))
	authed.DELETE("/logout", authHandler.Logout)

	admin := middleware.RequireRole("admin")
	root := middleware.RequireAdminGroup("root")
	self := middleware.RequireRole("account", "admin")

	users := authed.Group("/users")
	{
		users.GET("", admin, root, userHandler.List)
		users.GET("/my", self, userHandler.ReadSelf)
		users.GET("/:id", admin, root, userHandler.Read)
		users.POST("", admin, root, userHandler.Create)
		users.PUT("/my", self, userHandler.UpdateSelf)
		users.PUT("/:id", admin, root, userHandler.Update)
		users.PUT("/my/password", self, userHandler.SetPasswordSelf)
		users.PUT("/:id/password", admin, root, userHandler.SetPassword)
		users.DELETE("/:id", admin, root, userHandler.Delete)
	}
}

func (s *Server) Run(addr string) {
	s.log.Info("Server starting", zap.String("addr", addr))
	if err := s.router.Run(addr); err != nil {
		s.log.Fatal("Server failed to start", zap.Error(err))
	}
}
