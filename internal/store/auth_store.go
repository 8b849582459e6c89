package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"milletsmon/internal/backend"
	"milletsmon/internal/model"
	"milletsmon/pkg/util"
)

var (
	ErrNoSession          = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// CollectionSessions 会话失效通知使用的集合名，scope 为会话 id
const CollectionSessions = "sessions"

// AuthConfig 会话配置。RecheckInterval 是内存中的会话到 Redis 重新确认的间隔。
type AuthConfig struct {
	JWTSecret       string
	SessionTTL      time.Duration
	RefreshInterval time.Duration
	RecheckInterval time.Duration
}

// cachedSession 内存中的会话及最近一次与 Redis 确认的时间
type cachedSession struct {
	session    *model.Session
	verifiedAt time.Time
}

// AuthStore 会话缓存：内存优先，Redis 兜底（多实例共享）。
// 登出通过 Notifier 广播，其他实例在收到通知或下次确认时移除内存副本。
type AuthStore struct {
	client    *backend.Client
	persister Persister
	notifier  Notifier
	cfg       AuthConfig
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*cachedSession
}

func NewAuthStore(client *backend.Client, persister Persister, cfg AuthConfig, logger *zap.Logger) *AuthStore {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 10 * time.Minute
	}
	if cfg.RecheckInterval <= 0 {
		cfg.RecheckInterval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthStore{
		client:    client,
		persister: persister,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[string]*cachedSession),
	}
}

// SetNotifier 登出时向其他实例广播
func (a *AuthStore) SetNotifier(n Notifier) {
	a.notifier = n
}

func sessionKey(id string) string { return "session:" + id }

// IdentityOf 会话对应的后端调用身份
func IdentityOf(s *model.Session) backend.Identity {
	if s == nil {
		return backend.Identity{}
	}
	return backend.Identity{Token: s.BackendToken, UserID: s.User.ID, Role: s.User.Role}
}

// Login 后端登录成功后创建会话，返回会话与门户 token
func (a *AuthStore) Login(ctx context.Context, email, password string) (*model.Session, string, error) {
	res, err := a.client.Login(ctx, email, password)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusBadRequest) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("backend login: %w", err)
	}

	now := a.now()
	s := &model.Session{
		ID:            uuid.NewString(),
		BackendToken:  res.Token,
		User:          res.User,
		IssuedAt:      now,
		ExpiresAt:     now.Add(a.cfg.SessionTTL),
		UserCheckedAt: now,
	}

	token, err := util.GenerateJWT(s.ID, s.User.ID, s.User.Role, a.cfg.JWTSecret, s.IssuedAt, s.ExpiresAt)
	if err != nil {
		return nil, "", fmt.Errorf("sign session token: %w", err)
	}

	a.remember(cloneSession(s))

	if err := a.save(ctx, s); err != nil {
		// 本实例内存中仍可用
		a.logger.Warn("Failed to persist session", zap.String("session_id", s.ID), zap.Error(err))
	}

	a.logger.Info("User logged in",
		zap.String("session_id", s.ID),
		zap.String("user_id", s.User.ID),
		zap.String("role", s.User.Role))
	return cloneSession(s), token, nil
}

// Get 内存 -> Redis；内存副本超过确认间隔时到 Redis 重新确认。过期的会话会被删除
func (a *AuthStore) Get(ctx context.Context, id string) (*model.Session, error) {
	a.mu.RLock()
	cached, ok := a.sessions[id]
	var s *model.Session
	fresh := false
	if ok {
		s = cloneSession(cached.session)
		fresh = a.persister == nil || a.now().Sub(cached.verifiedAt) < a.cfg.RecheckInterval
	}
	a.mu.RUnlock()

	if !fresh {
		loaded, err := a.load(ctx, id)
		switch {
		case err == nil:
			s = loaded
			a.remember(cloneSession(s))
		case errors.Is(err, ErrNoSession):
			a.evict(id)
			return nil, ErrNoSession
		case ok:
			// Redis 暂时不可用时沿用内存副本
			a.logger.Warn("Failed to recheck session", zap.String("session_id", id), zap.Error(err))
		default:
			return nil, err
		}
	}

	if s.Expired(a.now()) {
		a.remove(ctx, id)
		return nil, ErrSessionExpired
	}
	return s, nil
}

// Authenticate 校验门户 token 并返回（必要时刷新用户信息的）会话
func (a *AuthStore) Authenticate(ctx context.Context, token string) (*model.Session, error) {
	claims, err := util.ParseJWT(token, a.cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return a.RefreshUser(ctx, claims.SessionID)
}

// RefreshUser 用户信息超过刷新间隔时重新读取 /api/auth/me；后端 401 结束会话
func (a *AuthStore) RefreshUser(ctx context.Context, id string) (*model.Session, error) {
	s, err := a.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.now().Sub(s.UserCheckedAt) < a.cfg.RefreshInterval {
		return s, nil
	}

	u, err := a.client.Me(ctx, s.BackendToken)
	if err != nil {
		if backend.IsUnauthorized(err) {
			a.remove(ctx, id)
			return nil, ErrSessionExpired
		}
		// 后端暂时不可用时沿用旧的用户信息
		a.logger.Warn("Failed to refresh session user", zap.String("session_id", id), zap.Error(err))
		return s, nil
	}

	a.mu.Lock()
	if cur, ok := a.sessions[id]; ok {
		next := cloneSession(cur.session)
		next.User = *u
		next.UserCheckedAt = a.now()
		a.sessions[id] = &cachedSession{session: next, verifiedAt: cur.verifiedAt}
		s = cloneSession(next)
	}
	a.mu.Unlock()

	if err := a.save(ctx, s); err != nil {
		a.logger.Warn("Failed to persist session", zap.String("session_id", id), zap.Error(err))
	}
	return s, nil
}

// Logout 删除会话并通知其他实例；不存在时不报错
func (a *AuthStore) Logout(ctx context.Context, id string) error {
	a.evict(id)

	if a.persister != nil {
		if err := a.persister.Delete(ctx, sessionKey(id)); err != nil {
			return err
		}
	}
	notify(ctx, Options{Logger: a.logger}, a.notifier, CollectionSessions, id)
	return nil
}

// Invalidate 移除内存中的会话副本，下次访问回到 Redis。scope 为空时移除全部。
// 没有 Redis 时内存是唯一副本，不做处理。
func (a *AuthStore) Invalidate(scope string) {
	if a.persister == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if scope == "" {
		clear(a.sessions)
		return
	}
	delete(a.sessions, scope)
}

func (a *AuthStore) remember(s *model.Session) {
	a.mu.Lock()
	a.sessions[s.ID] = &cachedSession{session: s, verifiedAt: a.now()}
	a.mu.Unlock()
}

func (a *AuthStore) evict(id string) {
	a.mu.Lock()
	delete(a.sessions, id)
	a.mu.Unlock()
}

func (a *AuthStore) remove(ctx context.Context, id string) {
	if err := a.Logout(ctx, id); err != nil {
		a.logger.Warn("Failed to remove session", zap.String("session_id", id), zap.Error(err))
	}
}

func (a *AuthStore) save(ctx context.Context, s *model.Session) error {
	if a.persister == nil {
		return nil
	}
	ttl := s.ExpiresAt.Sub(a.now())
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return a.persister.Save(ctx, sessionKey(s.ID), raw, ttl)
}

func (a *AuthStore) load(ctx context.Context, id string) (*model.Session, error) {
	if a.persister == nil {
		return nil, ErrNoSession
	}
	raw, err := a.persister.Load(ctx, sessionKey(id))
	if errors.Is(err, ErrNotPersisted) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func cloneSession(s *model.Session) *model.Session {
	c := *s
	return &c
}
