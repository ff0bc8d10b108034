// Package identity owns the durable "who is chatting" token. The same value
// is used as the id of the active session.
package identity

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

// Key is the fixed storage key of the identity entry.
const Key = "ANYGEM_USER_ID"

const prefix = "UID_"

// KV is the durable storage the Store writes through to.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

type Store struct {
	kv      KV
	now     func() time.Time
	current string
}

type Option func(*Store)

// WithClock overrides time.Now for token generation.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(kv KV, opts ...Option) *Store {
	s := &Store{kv: kv, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the persisted identity, creating one on first use. Read
// failures count as "nothing persisted".
func (s *Store) Get() string {
	if s.current == "" {
		v, ok, err := s.kv.Get(Key)
		if err != nil {
			log.Printf("[Identity] Get failed: read err=%v", err)
		}
		if err == nil && ok && v != "" {
			s.current = v
		} else {
			s.current = s.newToken()
		}
	}
	s.persist()
	return s.current
}

// Reset replaces the identity with a fresh token.
func (s *Store) Reset() string {
	s.current = s.newToken()
	s.persist()
	log.Printf("[Identity] Reset identity=%s", s.current)
	return s.current
}

// Set adopts an existing session id as the identity.
func (s *Store) Set(id string) {
	s.current = id
	s.persist()
}

func (s *Store) persist() {
	if err := s.kv.Set(Key, s.current); err != nil {
		log.Printf("[Identity] persist failed identity=%s err=%v", s.current, err)
	}
}

// newToken returns UID_<unix millis>, never equal to the current value.
func (s *Store) newToken() string {
	ms := s.now().UnixMilli()
	if prev, ok := Timestamp(s.current); ok && ms <= prev {
		ms = prev + 1
	}
	return fmt.Sprintf("%s%d", prefix, ms)
}

// Timestamp extracts the creation time (unix millis) embedded in a token.
func Timestamp(token string) (int64, bool) {
	if !strings.HasPrefix(token, prefix) {
		return 0, false
	}
	ms, err := strconv.ParseInt(token[len(prefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}
