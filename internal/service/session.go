package service

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"quest-launchpad/internal/eligibility"
)

type sessionEntry struct {
	channels  eligibility.ChannelState
	expiresAt time.Time
}

// SessionStore 按 (任务, 钱包) 保存本次会话内已通过的验证渠道
// 只在内存中，进程重启或超过 TTL 后需要重新验证
type SessionStore struct {
	mu    sync.Mutex
	cache *lru.Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewSessionStore(size int, ttl time.Duration) *SessionStore {
	if size <= 0 {
		size = 10000
	}
	cache, _ := lru.New(size)
	return &SessionStore{
		cache: cache,
		ttl:   ttl,
		now:   time.Now,
	}
}

func sessionKey(quest, wallet string) string {
	return strings.ToLower(quest) + "|" + strings.ToLower(wallet)
}

func (s *SessionStore) Get(quest, wallet string) eligibility.ChannelState {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(quest, wallet)
	v, ok := s.cache.Get(key)
	if !ok {
		return eligibility.ChannelState{}
	}
	entry := v.(sessionEntry)
	if s.ttl > 0 && !s.now().Before(entry.expiresAt) {
		s.cache.Remove(key)
		return eligibility.ChannelState{}
	}
	return entry.channels
}

// Merge 只会置位，不会清除已通过的渠道
func (s *SessionStore) Merge(quest, wallet string, channels eligibility.ChannelState) eligibility.ChannelState {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(quest, wallet)
	var current eligibility.ChannelState
	if v, ok := s.cache.Get(key); ok {
		entry := v.(sessionEntry)
		if s.ttl <= 0 || s.now().Before(entry.expiresAt) {
			current = entry.channels
		}
	}

	current.QRVerified = current.QRVerified || channels.QRVerified
	current.LocationVerified = current.LocationVerified || channels.LocationVerified
	current.SocialVerified = current.SocialVerified || channels.SocialVerified

	s.cache.Add(key, sessionEntry{channels: current, expiresAt: s.now().Add(s.ttl)})
	return current
}

// End 领取成功后清除会话
func (s *SessionStore) End(quest, wallet string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(sessionKey(quest, wallet))
}

func (s *SessionStore) Len() int {
	return s.cache.Len()
}
