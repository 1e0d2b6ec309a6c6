package store

import (
	"fmt"
	"sync"

	"github.com/huynhanhkhoa2895/face-swap/pkg/models"
)

// MemoryStore is the in-memory JobStore implementation
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*models.Job)}
}

// Create adds a new job record. Job ids are unique per submission; a
// duplicate id is a programming error and is rejected.
func (s *MemoryStore) Create(job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

// Get returns a snapshot of the job with the given id
func (s *MemoryStore) Get(id string) (models.JobSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return models.JobSnapshot{}, ErrJobNotFound
	}
	return job.Snapshot(), nil
}

// Update applies a mutation to the job under the store lock, so
// concurrent Get calls see either the state before or after the
// mutation, never a torn mix.
func (s *MemoryStore) Update(id string, mutate func(*models.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	mutate(job)
	return nil
}

// All returns snapshots of every job record
func (s *MemoryStore) All() []models.JobSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.JobSnapshot, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Snapshot())
	}
	return out
}
