package approval

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/web3nomad/Rabby/pkg/errno"
)

// Registry keeps open sessions for the HTTP service. Entries expire after ttl without access
// and expired transaction sessions are closed.
type Registry struct {
	ttl   time.Duration
	items *gocache.Cache
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	items := gocache.New(ttl, ttl/2)
	items.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(*Session); ok {
			s.Close()
		}
	})
	return &Registry{ttl: ttl, items: items}
}

func (r *Registry) Put(s *Session) {
	r.items.Set(s.ID, s, r.ttl)
}

func (r *Registry) PutSign(s *SignSession) {
	r.items.Set(s.ID, s, r.ttl)
}

// Get returns the session and refreshes its expiry.
func (r *Registry) Get(id string) (*Session, error) {
	v, ok := r.items.Get(id)
	if !ok {
		return nil, errno.ErrSessionNotFound
	}
	s, ok := v.(*Session)
	if !ok {
		return nil, errno.ErrSessionNotFound
	}
	r.items.Set(id, s, r.ttl)
	return s, nil
}

func (r *Registry) GetSign(id string) (*SignSession, error) {
	v, ok := r.items.Get(id)
	if !ok {
		return nil, errno.ErrSessionNotFound
	}
	s, ok := v.(*SignSession)
	if !ok {
		return nil, errno.ErrSessionNotFound
	}
	r.items.Set(id, s, r.ttl)
	return s, nil
}

// Remove drops and closes a session.
func (r *Registry) Remove(id string) {
	r.items.Delete(id)
}

func (r *Registry) Len() int {
	return r.items.ItemCount()
}
