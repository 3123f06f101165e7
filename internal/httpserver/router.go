package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"taskboard/internal/handler"
	"taskboard/pkg/logger"
)

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnChecker reports broker connectivity.
type ConnChecker interface {
	IsConnected() bool
}

type RouterConfig struct {
	JWTSecret      string
	RatePerSecond  float64
	RateBurst      int
	AllowedOrigins []string
}

type Deps struct {
	Tasks    *handler.TaskHandler
	Comments *handler.CommentHandler
	Probes   Probes
	Logger   *zap.Logger
}

// Probes are the dependencies checked by /readyz.
type Probes struct {
	DB      Pinger
	Brokers []ConnChecker
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Authorization", "X-Amz-Date", "X-Api-Key", "X-Amz-Security-Token", TraceHeader},
		ExposeHeaders: []string{TraceHeader},
		MaxAge:        10 * time.Minute,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func NewRouter(cfg RouterConfig, deps Deps) *gin.Engine {
	log := logger.OrNop(deps.Logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(RequestLogger(log))
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	registerOps(r, deps.Probes)

	api := r.Group("/")
	api.Use(AuthMiddleware(cfg.JWTSecret))
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = max(1, int(cfg.RatePerSecond))
		}
		api.Use(RateLimiter(rate.Limit(cfg.RatePerSecond), burst))
	}
	{
		api.GET("/tasks", deps.Tasks.ListTasks)
		api.POST("/tasks", deps.Tasks.CreateTask)
		api.PUT("/tasks/:taskId", deps.Tasks.UpdateTask)
		api.DELETE("/tasks/:taskId", deps.Tasks.DeleteTask)
		api.GET("/tasks/:taskId/activity", deps.Tasks.ListActivity)
		api.GET("/tasks/:taskId/comments", deps.Comments.ListComments)
		api.POST("/tasks/:taskId/comments", deps.Comments.AddComment)
	}

	return r
}

// NewOpsRouter serves only health, readiness and metrics, for the
// background binaries.
func NewOpsRouter(probes Probes, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger.OrNop(log)))
	registerOps(r, probes)
	return r
}

func registerOps(r *gin.Engine, probes Probes) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if probes.DB != nil {
			if err := probes.DB.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
				return
			}
		}
		for _, b := range probes.Brokers {
			if !b.IsConnected() {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "mq_not_ready"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
