// Package memory provides an in-memory post store for development and testing.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/JakeFAU/blogharvest/internal/harvest"
)

// PostStore keeps post rows in a map keyed by identity.
type PostStore struct {
	mu    sync.RWMutex
	clock harvest.Clock
	posts map[string]harvest.PostRecord
}

// NewPostStore constructs a PostStore. A nil clock falls back to wall time.
func NewPostStore(clock harvest.Clock) *PostStore {
	return &PostStore{
		clock: clock,
		posts: make(map[string]harvest.PostRecord),
	}
}

func (s *PostStore) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now().UTC()
}

// Upsert inserts or overwrites a post, bumping updated_at only on change.
func (s *PostStore) Upsert(_ context.Context, record harvest.PostRecord) (harvest.Outcome, error) {
	if record.Identity == "" {
		return "", &harvest.PersistenceError{Title: record.Title, Err: errors.New("record identity is required")}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, ok := s.posts[record.Identity]
	if !ok {
		record.Tags = slices.Clone(record.Tags)
		record.InsertedAt = now
		record.UpdatedAt = now
		s.posts[record.Identity] = record
		return harvest.OutcomeInserted, nil
	}
	if sameContent(existing, record) {
		return harvest.OutcomeUnchanged, nil
	}
	existing.Title = record.Title
	existing.PublishedDate = record.PublishedDate
	existing.Link = record.Link
	existing.Tags = slices.Clone(record.Tags)
	existing.Body = record.Body
	existing.UpdatedAt = now
	s.posts[record.Identity] = existing
	return harvest.OutcomeUpdated, nil
}

// Get returns a copy of the stored post.
func (s *PostStore) Get(_ context.Context, identity string) (harvest.PostRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.posts[identity]
	if !ok {
		return harvest.PostRecord{}, harvest.ErrNotFound
	}
	rec.Tags = slices.Clone(rec.Tags)
	return rec, nil
}

// Len reports the number of stored posts.
func (s *PostStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// Close is a no-op.
func (s *PostStore) Close() error { return nil }

// Tags compare in their persisted joined form, matching the SQL stores.
func sameContent(a, b harvest.PostRecord) bool {
	return a.Title == b.Title &&
		a.PublishedDate.Equal(b.PublishedDate) &&
		a.Link == b.Link &&
		harvest.JoinTags(a.Tags) == harvest.JoinTags(b.Tags) &&
		a.Body == b.Body
}
