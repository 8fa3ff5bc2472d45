package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"library-encoder/constant"
	"library-encoder/dto"
)

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrJobAlreadyActive = errors.New("an encoding job is already active for this user")
)

type TrackFailure struct {
	TrackId string `json:"track_id"`
	Reason  string `json:"reason"`
}

// Snapshot is the full state of one encoding job at a point in time.
// Snapshots are immutable once published; the coordinator replaces the
// whole record on every update so readers never observe a torn state.
type Snapshot struct {
	JobId      uuid.UUID
	UserId     string
	State      constant.JobState
	Total      int
	Processed  int
	Progress   int
	Message    string
	Failed     []TrackFailure
	Result     *dto.JobResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Registry keeps the status of every encoding job and enforces the
// one-active-job-per-user invariant. Written only by the coordinator,
// read by the status endpoint.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[uuid.UUID]*Snapshot
	active map[string]uuid.UUID
}

func New() *Registry {
	return &Registry{
		jobs:   make(map[uuid.UUID]*Snapshot),
		active: make(map[string]uuid.UUID),
	}
}

// Create registers a new PENDING job for the user. The check for an
// existing non-terminal job and the reservation of the new one happen
// under the same lock, so two concurrent starts for one user cannot both
// succeed.
func (r *Registry) Create(userId string) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if jobId, ok := r.active[userId]; ok {
		if snap, ok := r.jobs[jobId]; ok && !snap.State.Terminal() {
			return nil, ErrJobAlreadyActive
		}
	}

	snap := &Snapshot{
		JobId:     uuid.New(),
		UserId:    userId,
		State:     constant.JobStatePending,
		Message:   "waiting for worker",
		StartedAt: time.Now().UTC(),
	}
	r.jobs[snap.JobId] = snap
	r.active[userId] = snap.JobId
	return snap, nil
}

// Publish replaces the stored snapshot for snap.JobId. Updates against an
// unknown or already-terminal job are dropped, and the processed count and
// progress percentage never regress. Publishing a terminal snapshot
// releases the user's active-job slot.
func (r *Registry) Publish(snap *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.jobs[snap.JobId]
	if !ok || prev.State.Terminal() {
		return
	}
	if snap.Processed < prev.Processed {
		snap.Processed = prev.Processed
	}
	if snap.Progress < prev.Progress {
		snap.Progress = prev.Progress
	}
	r.jobs[snap.JobId] = snap

	if snap.State.Terminal() && r.active[snap.UserId] == snap.JobId {
		delete(r.active, snap.UserId)
	}
}

// Get returns the current snapshot for the job. The returned value must be
// treated as read-only.
func (r *Registry) Get(jobId uuid.UUID) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.jobs[jobId]
	if !ok {
		return nil, ErrJobNotFound
	}
	return snap, nil
}
