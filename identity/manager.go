// Package identity tracks the signed-in user. It consumes verified
// claims from the oidc package, guarantees a profile document exists,
// and fans out auth state changes so the entitlement observer can
// attach and detach.
package identity

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/freevoice-app/memberkit/entitlement"
	"github.com/freevoice-app/memberkit/oidc"
	"github.com/freevoice-app/memberkit/profile"
)

// User is the authenticated identity this layer exposes. Membership
// state lives in the profile store, never here.
type User struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

// Manager owns the current-user slot and the auth state fanout.
type Manager struct {
	store profile.Store
	log   logrus.FieldLogger

	mu        sync.Mutex
	user      *User
	listeners map[int]func(*User)
	nextID    int
}

// NewManager builds an identity manager over the profile store.
func NewManager(store profile.Store, log logrus.FieldLogger) *Manager {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Manager{store: store, log: log, listeners: make(map[int]func(*User))}
}

// HandleSignIn installs the user for the given verified claims,
// creating the profile on first sign-in with an un-granted free
// membership.
func (m *Manager) HandleSignIn(ctx context.Context, claims oidc.Claims) (*User, error) {
	u := &User{
		ID:        claims.Subject,
		Name:      claims.Name,
		Email:     claims.Email,
		AvatarURL: claims.Picture,
	}
	err := m.store.EnsureProfile(ctx, profile.Document{
		UserID:    u.ID,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		Membership: entitlement.Record{
			UserID: u.ID,
			Tier:   entitlement.TierFree,
		},
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.user = u
	m.mu.Unlock()
	m.log.WithField("user_id", u.ID).Info("user signed in")
	m.notify(u)
	return u, nil
}

// SignOut clears the current user and broadcasts the signed-out event.
// Subscribers use it to stop the entitlement observer and drop the
// cached snapshot.
func (m *Manager) SignOut() {
	m.mu.Lock()
	u := m.user
	m.user = nil
	m.mu.Unlock()
	if u != nil {
		m.log.WithField("user_id", u.ID).Info("user signed out")
	}
	m.notify(nil)
}

// CurrentUser returns the signed-in user, or nil.
func (m *Manager) CurrentUser() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Authenticated reports whether a user is signed in. Satisfies the
// feature gates' AuthState.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil
}

// OnAuthStateChanged registers fn for sign-in (non-nil user) and
// sign-out (nil) events; the returned func removes it.
func (m *Manager) OnAuthStateChanged(fn func(*User)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) notify(u *User) {
	m.mu.Lock()
	fns := make([]func(*User), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}
