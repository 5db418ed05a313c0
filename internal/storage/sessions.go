package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"

	"sheetexpense/internal/log"
)

// SessionStore keeps scs sessions in the cache database. Tokens are stored
// as HMAC-SHA256 digests keyed by the session secret, so a leaked table
// cannot be replayed as cookies.
type SessionStore struct {
	repo   *Repository
	secret []byte

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

var _ scs.CtxStore = (*SessionStore)(nil)

// NewSessionStore creates a store and starts pruning expired rows every
// cleanupInterval. A zero interval disables pruning.
func NewSessionStore(repo *Repository, secret string, cleanupInterval time.Duration) *SessionStore {
	s := &SessionStore{
		repo:   repo,
		secret: []byte(secret),
	}
	if cleanupInterval > 0 {
		s.stopCleanup = make(chan struct{})
		go s.startCleanup(cleanupInterval)
	}
	return s
}

func (s *SessionStore) key(token string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *SessionStore) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	var data []byte
	err := s.repo.db.QueryRowContext(ctx, s.repo.q(`SELECT data FROM sessions WHERE token = ? AND expiry > ?`),
		s.key(token), time.Now().Unix()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find session: %w", err)
	}
	return data, true, nil
}

func (s *SessionStore) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	_, err := s.repo.db.ExecContext(ctx, s.repo.q(`
		INSERT INTO sessions (token, data, expiry) VALUES (?, ?, ?)
		ON CONFLICT (token) DO UPDATE SET data = excluded.data, expiry = excluded.expiry`),
		s.key(token), b, expiry.Unix())
	if err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteCtx(ctx context.Context, token string) error {
	_, err := s.repo.db.ExecContext(ctx, s.repo.q(`DELETE FROM sessions WHERE token = ?`), s.key(token))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) Find(token string) ([]byte, bool, error) {
	return s.FindCtx(context.Background(), token)
}

func (s *SessionStore) Commit(token string, b []byte, expiry time.Time) error {
	return s.CommitCtx(context.Background(), token, b, expiry)
}

func (s *SessionStore) Delete(token string) error {
	return s.DeleteCtx(context.Background(), token)
}

// DeleteExpired removes expired sessions and returns how many were pruned.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.repo.db.ExecContext(ctx, s.repo.q(`DELETE FROM sessions WHERE expiry <= ?`), time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SessionStore) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := s.DeleteExpired(ctx)
			cancel()
			if err != nil {
				slog.Error("Session cleanup failed", log.FieldError, err)
				continue
			}
			if n > 0 {
				slog.Debug("Pruned expired sessions", log.FieldCount, n)
			}
		case <-s.stopCleanup:
			return
		}
	}
}

// StopCleanup terminates the pruning goroutine.
func (s *SessionStore) StopCleanup() {
	s.shutdownOnce.Do(func() {
		if s.stopCleanup != nil {
			close(s.stopCleanup)
		}
	})
}
