// Package store holds the process-wide job records. Jobs are
// in-memory by design; losing them on restart is acceptable, the only
// durable artifact is the output video file.
package store

import (
	"errors"

	"github.com/huynhanhkhoa2895/face-swap/pkg/models"
)

// ErrJobNotFound is returned when a job id is unknown
var ErrJobNotFound = errors.New("job not found")

// JobStore is the concurrent map of job records. Get returns a
// detached snapshot so readers never observe a half-written record;
// Update applies a mutation atomically under the store lock.
type JobStore interface {
	Create(job *models.Job) error
	Get(id string) (models.JobSnapshot, error)
	Update(id string, mutate func(*models.Job)) error
	All() []models.JobSnapshot
}
