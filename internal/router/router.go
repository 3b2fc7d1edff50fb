package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/planboard/internal/config"
	"github.com/monocle-dev/planboard/internal/handlers"
	"github.com/monocle-dev/planboard/internal/middleware"
	"github.com/monocle-dev/planboard/internal/realtime"
	"github.com/monocle-dev/planboard/internal/services"
	"github.com/monocle-dev/planboard/internal/store"
	"github.com/monocle-dev/planboard/internal/types"
	"github.com/sirupsen/logrus"
)

// Deps wires the services behind the HTTP surface. Hub may be nil to disable live refresh.
type Deps struct {
	Config   *config.Server
	Store    store.Store
	Auth     *services.AuthService
	Projects *services.ProjectService
	Tasks    *services.TaskService
	Hub      *realtime.Hub
	Log      logrus.FieldLogger
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Log))

	origins := deps.Config.AllowedOrigins
	if len(origins) == 0 {
		origins = types.DefaultOrigins
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	authRequired := middleware.AuthMiddleware(deps.Auth, deps.Log)

	health := handlers.NewHealthHandler(deps.Store, deps.Log)
	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Log)
	projectHandler := handlers.NewProjectHandler(deps.Projects, deps.Log)
	taskHandler := handlers.NewTaskHandler(deps.Tasks, deps.Log)

	api := r.Group(deps.Config.BasePath)
	{
		api.GET("/health", health.HealthCheck)

		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", authRequired, authHandler.Me)
			auth.PUT("/me", authRequired, authHandler.UpdateMe)
			auth.DELETE("/me", authRequired, authHandler.DeleteMe)
			auth.POST("/logout", authRequired, authHandler.Logout)
		}

		projects := api.Group("/projects", authRequired)
		{
			projects.POST("", projectHandler.CreateProject)
			projects.GET("", projectHandler.ListProjects)
			projects.GET("/:id", projectHandler.GetProject)
			projects.PUT("/:id", projectHandler.UpdateProject)
			projects.DELETE("/:id", projectHandler.DeleteProject)

			if deps.Hub != nil {
				ws := handlers.NewWebSocketHandler(deps.Projects, deps.Hub, deps.Log)
				projects.GET("/:id/ws", ws.Subscribe)
			}
		}

		tasks := api.Group("/tasks", authRequired)
		{
			tasks.POST("", taskHandler.CreateTask)
			tasks.GET("/project/:projectId", taskHandler.ListProjectTasks)
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.PUT("/:id", taskHandler.UpdateTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
		}
	}

	return r
}
