package models

import (
	"time"
)

// JobStatus represents the lifecycle state of a face swap job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ProgressStage identifies which pipeline stage is currently running
type ProgressStage string

const (
	StageExtracting  ProgressStage = "extracting"
	StageCompositing ProgressStage = "compositing"
	StageAssembling  ProgressStage = "assembling"
	StageMuxing      ProgressStage = "muxing"
)

// Progress reports how far along a processing job is.
// Percentage is 0-100 across the whole pipeline, not per stage.
type Progress struct {
	Stage        ProgressStage `json:"stage"`
	Percentage   int           `json:"percentage"`
	CurrentFrame int           `json:"current_frame,omitempty"`
	TotalFrames  int           `json:"total_frames,omitempty"`
}

// Job is the mutable record for one face swap submission.
// It is owned and mutated exclusively by the orchestrator driving it.
type Job struct {
	ID          string     `json:"id"`
	TemplateID  string     `json:"template_id"`
	CallerKey   string     `json:"-"`
	Status      JobStatus  `json:"status"`
	Progress    *Progress  `json:"progress,omitempty"`
	Error       string     `json:"error,omitempty"`
	OutputPath  string     `json:"output_path,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobSnapshot is an immutable point-in-time copy of a job record,
// safe to hand to readers while the job goroutine keeps mutating the
// underlying record.
type JobSnapshot struct {
	ID          string     `json:"id"`
	TemplateID  string     `json:"template_id"`
	Status      JobStatus  `json:"status"`
	Progress    *Progress  `json:"progress,omitempty"`
	Error       string     `json:"error,omitempty"`
	OutputPath  string     `json:"output_path,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Snapshot copies the job into a detached value. The Progress and
// CompletedAt pointers are deep-copied so later mutation of the job
// cannot leak into a snapshot already handed out.
func (j *Job) Snapshot() JobSnapshot {
	s := JobSnapshot{
		ID:         j.ID,
		TemplateID: j.TemplateID,
		Status:     j.Status,
		Error:      j.Error,
		OutputPath: j.OutputPath,
		CreatedAt:  j.CreatedAt,
	}
	if j.Progress != nil {
		p := *j.Progress
		s.Progress = &p
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		s.CompletedAt = &t
	}
	return s
}
