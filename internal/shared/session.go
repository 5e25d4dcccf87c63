package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "kuma:session:"

// SessionManager keeps admin sessions in Redis and hands the browser a signed
// cookie holding only the session id.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	secret     []byte
	ttl        time.Duration
	secure     bool
}

// Session is the per-request view of a stored session.
type Session struct {
	ID string

	data      map[string]string
	owner     string
	stored    bool
	changed   bool
	destroyed bool
	// retiredID is the id Renew replaced; Commit deletes its record.
	retiredID string
}

type storedSession struct {
	Data  map[string]string `json:"values"`
	Owner string            `json:"user_id"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		secret:     []byte(secret),
		ttl:        ttl,
		secure:     secure,
	}
}

// Load resolves the request cookie to its stored session. Missing, forged or
// expired cookies all yield a fresh anonymous session.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return fresh(), nil
	}
	if err != nil {
		return nil, err
	}
	id, ok := sm.verify(cookie.Value)
	if !ok {
		return fresh(), nil
	}

	raw, err := sm.client.Get(ctx, sm.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return fresh(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var rec storedSession
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if rec.Data == nil {
		rec.Data = map[string]string{}
	}
	return &Session{ID: id, data: rec.Data, owner: rec.Owner, stored: true}, nil
}

// Commit writes pending changes to Redis and sets or clears the cookie.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	switch {
	case sess == nil:
		return nil
	case sess.destroyed:
		if err := sm.drop(ctx, sess.ID); err != nil {
			return err
		}
		http.SetCookie(w, sm.cookie("", -1))
		return nil
	}

	if sess.retiredID != "" {
		if err := sm.drop(ctx, sess.retiredID); err != nil {
			return err
		}
		sess.retiredID = ""
	}
	if !sess.stored && sess.empty() {
		return nil
	}
	if sess.changed || !sess.stored {
		raw, err := json.Marshal(storedSession{Data: sess.data, Owner: sess.owner})
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sm.key(sess.ID), raw, sm.ttl).Err(); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		sess.stored, sess.changed = true, false
	}
	http.SetCookie(w, sm.cookie(sm.sign(sess.ID), 0))
	return nil
}

// Destroy marks the session for deletion on the next Commit.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess != nil {
		sess.destroyed = true
	}
}

// Renew gives the session a new id, keeping its data. Login calls it so a
// pre-login id cannot be reused.
func (sm *SessionManager) Renew(sess *Session) {
	if sess == nil {
		return
	}
	if sess.stored {
		sess.retiredID = sess.ID
	}
	sess.ID = uuid.NewString()
	sess.stored = false
	sess.changed = true
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration { return sm.ttl }

// CookieName returns the session cookie name.
func (sm *SessionManager) CookieName() string { return sm.cookieName }

func (sm *SessionManager) key(id string) string { return sessionKeyPrefix + id }

func (sm *SessionManager) drop(ctx context.Context, id string) error {
	if err := sm.client.Del(ctx, sm.key(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// cookie builds the session cookie. A negative maxAge clears it.
func (sm *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	}
	if maxAge >= 0 {
		c.Expires = time.Now().Add(sm.ttl)
	}
	return c
}

// sign renders id as "id.mac" so tampered cookies are rejected before Redis is hit.
func (sm *SessionManager) sign(id string) string {
	mac := hmac.New(sha256.New, sm.secret)
	_, _ = mac.Write([]byte(id))
	return id + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (sm *SessionManager) verify(value string) (string, bool) {
	id, _, ok := strings.Cut(value, ".")
	if !ok || id == "" || !hmac.Equal([]byte(sm.sign(id)), []byte(value)) {
		return "", false
	}
	return id, true
}

func fresh() *Session {
	return &Session{ID: uuid.NewString(), data: map[string]string{}}
}

func (s *Session) empty() bool { return len(s.data) == 0 && s.owner == "" }

// Set stores a value.
func (s *Session) Set(key, value string) {
	if s.data == nil {
		s.data = map[string]string{}
	}
	s.data[key] = value
	s.changed = true
}

// Get returns a stored value or "".
func (s *Session) Get(key string) string { return s.data[key] }

// Delete removes a value.
func (s *Session) Delete(key string) {
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.changed = true
	}
}

// SetUser binds the session to an admin account.
func (s *Session) SetUser(id int64) {
	s.owner = strconv.FormatInt(id, 10)
	s.changed = true
}

// User returns the raw owner id, empty when anonymous.
func (s *Session) User() string { return s.owner }

// UserID returns the owning admin id. It is nil-safe.
func (s *Session) UserID() (int64, bool) {
	if s == nil || s.owner == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s.owner, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
