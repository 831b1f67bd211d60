package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"teamboard/internal/handler"
	"teamboard/pkg/mq"
)

type Router struct {
	Engine *gin.Engine
}

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth          *handler.AuthHandler
	Projects      *handler.ProjectHandler
	Members       *handler.MemberHandler
	Tasks         *handler.TaskHandler
	Milestones    *handler.MilestoneHandler
	Comments      *handler.CommentHandler
	Suggestions   *handler.SuggestHandler
	Notifications *handler.NotificationHandler
	WS            *handler.WSHandler
}

func NewRouter(h Handlers, jwtSecret string, logger *zap.Logger, db *pgxpool.Pool, consumers []*mq.Consumer) *Router {
	r := gin.Default()

	r.Use(TraceMiddleware())
	r.Use(MetricsMiddleware())

	// 请求日志中间件
	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	})

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		for _, consumer := range consumers {
			if consumer != nil && !consumer.IsConnected() {
				c.JSON(500, gin.H{"status": "mq_not_ready"})
				return
			}
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/register", h.Auth.Register)
	r.POST("/login", h.Auth.Login)
	// The websocket dial carries its token in the query string and
	// authenticates inside the handler, so it lives outside the group.
	r.GET("/ws", h.WS.Serve)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.GET("/me", h.Auth.Me)
		auth.PUT("/me", h.Auth.UpdateMe)

		auth.GET("/projects", h.Projects.List)
		auth.POST("/projects", h.Projects.Create)
		auth.GET("/projects/:id", h.Projects.Get)
		auth.PUT("/projects/:id", h.Projects.Update)
		auth.DELETE("/projects/:id", h.Projects.Delete)

		auth.GET("/projects/:id/members", h.Members.ListMembers)
		auth.DELETE("/projects/:id/members/:userID", h.Members.RemoveMember)
		auth.GET("/projects/:id/invitations", h.Members.ListProjectInvitations)
		auth.POST("/projects/:id/invitations", h.Members.Invite)
		auth.GET("/invitations", h.Members.ListMyInvitations)
		auth.POST("/invitations/:id/accept", h.Members.Accept)
		auth.POST("/invitations/:id/decline", h.Members.Decline)
		auth.DELETE("/invitations/:id", h.Members.Cancel)

		auth.POST("/projects/:id/milestones", h.Milestones.Create)
		auth.PUT("/milestones/:id", h.Milestones.Update)
		auth.DELETE("/milestones/:id", h.Milestones.Delete)

		auth.POST("/projects/:id/tasks", h.Tasks.Create)
		auth.PATCH("/tasks/:id", h.Tasks.Update)
		auth.DELETE("/tasks/:id", h.Tasks.Delete)
		auth.POST("/tasks/:id/move", h.Tasks.Move)

		auth.GET("/tasks/:id/comments", h.Comments.List)
		auth.POST("/tasks/:id/comments", h.Comments.Create)
		auth.DELETE("/comments/:id", h.Comments.Delete)

		auth.POST("/projects/:id/suggestions", h.Suggestions.Generate)
		auth.POST("/projects/:id/suggestions/apply", h.Suggestions.Apply)

		auth.GET("/notifications", h.Notifications.List)
		auth.POST("/notifications/:id/read", h.Notifications.MarkRead)
	}

	return &Router{Engine: r}
}
