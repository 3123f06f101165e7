package httpserver

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"taskboard/internal/handler"
	"taskboard/pkg/metrics"
	"taskboard/pkg/trace"
	"taskboard/pkg/util"
)

const TraceHeader = trace.HeaderName

// AuthMiddleware resolves the caller from a bearer token. Requests without
// credentials run as handler.DefaultCallerID; a bad token is rejected.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			c.Set(handler.CallerKey, handler.DefaultCallerID)
			c.Next()
			return
		}

		userID, err := util.ParseSubject(token, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(handler.CallerKey, userID)
		c.Next()
	}
}

// TraceMiddleware propagates or assigns a trace id for the request.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" {
			traceID = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(TraceHeader, traceID)
		c.Next()
	}
}

// RequestLogger logs every request and records its latency.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), latency)

		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("trace_id", trace.FromContext(c.Request.Context())),
		)
	}
}

// visitorIdleTTL is how long a caller's limiter is kept after its last request.
const visitorIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorSet holds one limiter per caller and evicts the idle ones.
type visitorSet struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	visitors  map[string]*visitor
	lastSweep time.Time
}

func newVisitorSet(r rate.Limit, b int, idleTTL time.Duration) *visitorSet {
	return &visitorSet{
		limit:    r,
		burst:    b,
		idleTTL:  idleTTL,
		visitors: make(map[string]*visitor),
	}
}

// allow reports whether key may make a request at now. At most once per
// idleTTL it drops limiters not seen within idleTTL.
func (s *visitorSet) allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= s.idleTTL {
		for k, v := range s.visitors {
			if now.Sub(v.lastSeen) >= s.idleTTL {
				delete(s.visitors, k)
			}
		}
		s.lastSweep = now
	}

	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (s *visitorSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

// RateLimiter applies a token bucket per caller, falling back to the client IP.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	return rateLimit(newVisitorSet(r, b, visitorIdleTTL), time.Now)
}

func rateLimit(set *visitorSet, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id := c.GetString(handler.CallerKey); id != "" && id != handler.DefaultCallerID {
			key = "user:" + id
		}
		if !set.allow(key, now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
