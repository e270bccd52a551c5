package scheduler

import (
	"strings"
	"sync"

	"github.com/forgelabs/forge/pkg/store"
)

// activeJob is a single job currently running or queued behind its
// SourceKey's exclusivity, tracked so that RPC status queries and the
// Change Pipeline's "is this product still being written" check can answer
// without hitting the store.
type activeJob struct {
	jobID     int64
	key       store.SourceKey
	builderID string
	destDir   string
}

// queuedJob is a job waiting for its SourceKey's exclusive slot to free up.
type queuedJob struct {
	job *activeJob
	run func()
}

// inFlightIndex tracks jobs by SourceKey and by jobId, and enforces that at
// most one job per SourceKey is ever running at a time (§4.6's "two jobs
// that share a SourceKey never run in parallel").
type inFlightIndex struct {
	mu       sync.Mutex
	byJobID  map[int64]*activeJob
	running  map[string]*activeJob   // source fold key -> the one running job
	pending  map[string][]*queuedJob // source fold key -> FIFO waiting their turn
}

func newInFlightIndex() *inFlightIndex {
	return &inFlightIndex{
		byJobID: make(map[int64]*activeJob),
		running: make(map[string]*activeJob),
		pending: make(map[string][]*queuedJob),
	}
}

func sourceFoldKey(key store.SourceKey) string {
	return strings.ToLower(key.SourcePath) + "\x00" + strings.ToLower(key.Platform) + "\x00" + strings.ToLower(key.JobKey)
}

// submit runs run immediately if no job for job.key is currently running,
// otherwise queues it to run once the current holder finishes.
func (idx *inFlightIndex) submit(job *activeJob, run func()) {
	idx.mu.Lock()
	fold := sourceFoldKey(job.key)
	idx.byJobID[job.jobID] = job
	if _, busy := idx.running[fold]; busy {
		idx.pending[fold] = append(idx.pending[fold], &queuedJob{job: job, run: run})
		idx.mu.Unlock()
		return
	}
	idx.running[fold] = job
	idx.mu.Unlock()
	run()
}

// finish releases job's exclusive slot and starts the next queued job for
// the same SourceKey, if any.
func (idx *inFlightIndex) finish(job *activeJob) {
	idx.mu.Lock()
	fold := sourceFoldKey(job.key)
	delete(idx.byJobID, job.jobID)
	delete(idx.running, fold)

	queue := idx.pending[fold]
	var next *queuedJob
	if len(queue) > 0 {
		next = queue[0]
		idx.pending[fold] = queue[1:]
		if len(idx.pending[fold]) == 0 {
			delete(idx.pending, fold)
		}
		idx.running[fold] = next.job
		idx.byJobID[next.job.jobID] = next.job
	}
	idx.mu.Unlock()

	if next != nil {
		next.run()
	}
}

// hasProduct reports whether relProduct falls under the destination
// directory of any currently running job.
func (idx *inFlightIndex) hasProduct(relProduct string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, job := range idx.running {
		if job.destDir == "" || strings.HasPrefix(relProduct, job.destDir+"/") {
			return true
		}
	}
	return false
}

// idle reports whether no job is currently running or queued.
func (idx *inFlightIndex) idle() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.running) == 0 && len(idx.pending) == 0
}

// jobByID looks up a currently tracked job (running or queued) by its id,
// for in-flight RPC status queries.
func (idx *inFlightIndex) jobByID(jobID int64) (*activeJob, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	job, ok := idx.byJobID[jobID]
	return job, ok
}

// inFlightStatus is a currently tracked job's identity and lifecycle state,
// for merging into the RPC surface's job-info response.
type inFlightStatus struct {
	jobID     int64
	key       store.SourceKey
	builderID string
	status    store.JobStatus
}

// forSource returns the in-memory status of every job currently tracked for
// relSource, across all platforms and job keys.
func (idx *inFlightIndex) forSource(relSource string) []inFlightStatus {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var result []inFlightStatus
	lowered := strings.ToLower(relSource)
	for fold, job := range idx.running {
		if strings.HasPrefix(fold, lowered+"\x00") {
			result = append(result, inFlightStatus{jobID: job.jobID, key: job.key, builderID: job.builderID, status: store.JobInProgress})
		}
	}
	for fold, queue := range idx.pending {
		if !strings.HasPrefix(fold, lowered+"\x00") {
			continue
		}
		for _, q := range queue {
			result = append(result, inFlightStatus{jobID: q.job.jobID, key: q.job.key, builderID: q.job.builderID, status: store.JobQueued})
		}
	}
	return result
}
