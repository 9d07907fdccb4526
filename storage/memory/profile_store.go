package memorystore

import (
	"context"
	"sync"

	"github.com/freevoice-app/memberkit/entitlement"
	"github.com/freevoice-app/memberkit/profile"
)

// ProfileStore is an in-memory profile.Store with watcher fanout.
// It backs tests and single-node development; production uses the
// postgres store.
type ProfileStore struct {
	mu       sync.Mutex
	docs     map[string]profile.Document
	watchers map[string]map[int]func(*entitlement.Record)
	nextID   int
}

// NewProfileStore creates an empty in-memory profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		docs:     make(map[string]profile.Document),
		watchers: make(map[string]map[int]func(*entitlement.Record)),
	}
}

func (s *ProfileStore) Get(ctx context.Context, userID string) (*entitlement.Record, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[userID]
	if !ok {
		return nil, nil
	}
	rec := doc.Membership
	return &rec, nil
}

func (s *ProfileStore) Watch(ctx context.Context, userID string, fn func(*entitlement.Record)) (func(), error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	if s.watchers[userID] == nil {
		s.watchers[userID] = make(map[int]func(*entitlement.Record))
	}
	s.watchers[userID][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers[userID], id)
	}, nil
}

func (s *ProfileStore) GetDocument(ctx context.Context, userID string) (*profile.Document, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[userID]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (s *ProfileStore) EnsureProfile(ctx context.Context, doc profile.Document) error {
	_ = ctx
	s.mu.Lock()
	if _, ok := s.docs[doc.UserID]; ok {
		s.mu.Unlock()
		return nil
	}
	s.docs[doc.UserID] = doc
	rec := doc.Membership
	fns := s.watcherList(doc.UserID)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(&rec)
	}
	return nil
}

func (s *ProfileStore) UpdateMembership(ctx context.Context, userID string, rec entitlement.Record) error {
	_ = ctx
	s.mu.Lock()
	doc := s.docs[userID]
	doc.UserID = userID
	doc.Membership = rec
	s.docs[userID] = doc
	pushed := rec
	fns := s.watcherList(userID)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(&pushed)
	}
	return nil
}

// Downgrade clears the Active flag on the stored record. Hard-lock
// write-back target.
func (s *ProfileStore) Downgrade(ctx context.Context, userID string) error {
	_ = ctx
	s.mu.Lock()
	doc, ok := s.docs[userID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	doc.Membership.Active = false
	s.docs[userID] = doc
	s.mu.Unlock()
	return nil
}

// Remove deletes the profile and pushes a nil record to watchers, the
// way a store delivers a removed document.
func (s *ProfileStore) Remove(ctx context.Context, userID string) error {
	_ = ctx
	s.mu.Lock()
	delete(s.docs, userID)
	fns := s.watcherList(userID)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(nil)
	}
	return nil
}

// watcherList must be called with s.mu held.
func (s *ProfileStore) watcherList(userID string) []func(*entitlement.Record) {
	fns := make([]func(*entitlement.Record), 0, len(s.watchers[userID]))
	for _, fn := range s.watchers[userID] {
		fns = append(fns, fn)
	}
	return fns
}
