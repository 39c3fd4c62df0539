package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	SessionCookieName = "session_id"
	SessionTimeout    = 24 * time.Hour

	sessionKey = "sessionID"
)

// Session 浏览器会话，作为任务归属
type Session struct {
	ID        string
	CreatedAt time.Time
	LastSeen  time.Time
}

// SessionManager 内存会话表
type SessionManager struct {
	sessions map[string]*Session
	timeout  time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

// NewSessionManager 创建会话管理器，timeout 非正数时使用 SessionTimeout
func NewSessionManager(timeout time.Duration) *SessionManager {
	if timeout <= 0 {
		timeout = SessionTimeout
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		timeout:  timeout,
		now:      time.Now,
	}
}

// generateSessionID 生成随机会话 ID
func generateSessionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}

// GetOrCreateSession 获取或创建会话，过期会话会被替换
func (sm *SessionManager) GetOrCreateSession(sessionID string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	if sessionID != "" {
		if session, exists := sm.sessions[sessionID]; exists {
			if now.Sub(session.LastSeen) < sm.timeout {
				session.LastSeen = now
				return session
			}
			delete(sm.sessions, sessionID)
		}
	}

	session := &Session{
		ID:        generateSessionID(),
		CreatedAt: now,
		LastSeen:  now,
	}
	sm.sessions[session.ID] = session
	return session
}

// Len 当前会话数
func (sm *SessionManager) Len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// CleanupExpired 删除过期会话，返回删除数量
func (sm *SessionManager) CleanupExpired() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	removed := 0
	for id, session := range sm.sessions {
		if now.Sub(session.LastSeen) >= sm.timeout {
			delete(sm.sessions, id)
			removed++
		}
	}
	return removed
}

// RunCleanup 定期清理过期会话，直到 ctx 结束
func (sm *SessionManager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CleanupExpired()
		}
	}
}

// SessionMiddleware Gin 中间件：确保每个请求都有会话
func SessionMiddleware(sm *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, _ := c.Cookie(SessionCookieName)
		session := sm.GetOrCreateSession(sessionID)

		if sessionID != session.ID {
			isSecure := c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https"
			c.SetCookie(
				SessionCookieName,
				session.ID,
				int(sm.timeout.Seconds()),
				"/",
				"",
				isSecure,
				true, // httpOnly
			)
		}

		c.Set(sessionKey, session.ID)
		c.Next()
	}
}

// GetSessionID 从上下文获取会话 ID
func GetSessionID(c *gin.Context) string {
	if id, ok := c.Get(sessionKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
