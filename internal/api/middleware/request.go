package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IPAttemptTracker counts recent login attempts per client IP so the login
// endpoints can throttle brute-force probing.
type IPAttemptTracker struct {
	attempts     map[string]*ipAttemptInfo
	maxAttempts  int
	window       time.Duration
	cleanupEvery time.Duration
	mu           sync.RWMutex
	stopChan     chan struct{}
	stopOnce     sync.Once
}

type ipAttemptInfo struct {
	count       int
	lastAttempt time.Time
}

func NewIPAttemptTracker(maxAttempts int) *IPAttemptTracker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	tracker := &IPAttemptTracker{
		attempts:     make(map[string]*ipAttemptInfo),
		maxAttempts:  maxAttempts,
		window:       30 * time.Second,
		cleanupEvery: 5 * time.Minute,
		stopChan:     make(chan struct{}),
	}

	go tracker.startCleanup()

	return tracker
}

func (t *IPAttemptTracker) startCleanup() {
	ticker := time.NewTicker(t.cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopChan:
			return
		case <-ticker.C:
			t.cleanOldEntries()
		}
	}
}

func (t *IPAttemptTracker) cleanOldEntries() {
	t.mu.Lock()
	defer t.mu.Unlock()

	expiry := time.Now().Add(-t.window)
	for ip, info := range t.attempts {
		if info.lastAttempt.Before(expiry) {
			delete(t.attempts, ip)
		}
	}
}

func (t *IPAttemptTracker) RecordAttempt(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, exists := t.attempts[ip]
	if !exists || time.Since(info.lastAttempt) > t.window {
		info = &ipAttemptInfo{}
		t.attempts[ip] = info
	}

	info.count++
	info.lastAttempt = time.Now()
}

func (t *IPAttemptTracker) Blocked(ip string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	info, exists := t.attempts[ip]
	return exists && info.count > t.maxAttempts
}

func (t *IPAttemptTracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
}

// RequestMiddleware handles cross-cutting request concerns: request ids,
// start/finish logging, panic recovery and login throttling.
type RequestMiddleware struct {
	logger         *zap.Logger
	attemptTracker *IPAttemptTracker
}

func NewRequestMiddleware(logger *zap.Logger, maxLoginAttempts int) *RequestMiddleware {
	return &RequestMiddleware{
		logger:         logger,
		attemptTracker: NewIPAttemptTracker(maxLoginAttempts),
	}
}

func (rm *RequestMiddleware) ProcessRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		rm.logger.Info("Request started",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()))

		c.Next()

		rm.logger.Info("Request completed",
			zap.String("request_id", requestID),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.Int("size", c.Writer.Size()))
	}
}

// ThrottleLogins rejects clients that exceeded the attempt budget. It guards
// the login endpoints only; verification stays unauthenticated and unmetered.
func (rm *RequestMiddleware) ThrottleLogins() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		rm.attemptTracker.RecordAttempt(clientIP)
		if rm.attemptTracker.Blocked(clientIP) {
			rm.logger.Warn("Throttling login attempts",
				zap.String("client_ip", clientIP),
				zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many attempts, slow down",
			})
			return
		}
		c.Next()
	}
}

func (rm *RequestMiddleware) RecoverPanic() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				rm.logger.Error("Panic recovered",
					zap.String("request_id", c.GetString("request_id")),
					zap.Any("error", err),
					zap.Stack("stack"))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

func (rm *RequestMiddleware) Stop() {
	rm.attemptTracker.Stop()
}
