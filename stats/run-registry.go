package stats

import (
	"sync"
	"time"

	"github.com/cevaris/ordered_map"
	"github.com/relloyd/trackpipe/logger"
	"github.com/rs/xid"
)

type RunStatus string

const (
	RunStatusRunning           RunStatus = "running"
	RunStatusComplete          RunStatus = "complete"
	RunStatusCompleteWithError RunStatus = "completeWithError"
)

// RunInfo is the state of one pipeline run as served by the runs endpoints.
type RunInfo struct {
	RunID     string      `json:"runId"`
	Pipeline  string      `json:"pipeline"`
	Status    RunStatus   `json:"status"`
	StartTime time.Time   `json:"startTime"`
	EndTime   *time.Time  `json:"endTime,omitempty"`
	Error     string      `json:"error,omitempty"`
	Report    interface{} `json:"report,omitempty"`
}

// RunRegistry keeps runs in start order and forgets the oldest finished runs beyond maxCompleted.
type RunRegistry struct {
	sync.RWMutex
	log          logger.Logger
	runs         *ordered_map.OrderedMap // runId => *RunInfo
	maxCompleted int
	now          func() time.Time
}

func NewRunRegistry(log logger.Logger, maxCompleted int) *RunRegistry {
	return &RunRegistry{log: log, runs: ordered_map.NewOrderedMap(), maxCompleted: maxCompleted, now: time.Now}
}

// Start registers a new running pipeline and returns its id.
func (r *RunRegistry) Start(pipeline string) string {
	id := xid.New().String()
	r.Lock()
	r.runs.Set(id, &RunInfo{RunID: id, Pipeline: pipeline, Status: RunStatusRunning, StartTime: r.now().UTC()})
	r.Unlock()
	r.log.Debug("registered run ", id, " for pipeline ", pipeline)
	return id
}

// Finish marks the run complete, saving the report and any error.
func (r *RunRegistry) Finish(id string, report interface{}, err error) {
	r.Lock()
	defer r.Unlock()
	v, ok := r.runs.Get(id)
	if !ok {
		return
	}
	ri := v.(*RunInfo)
	end := r.now().UTC()
	ri.EndTime = &end
	ri.Report = report
	if err != nil {
		ri.Status = RunStatusCompleteWithError
		ri.Error = err.Error()
	} else {
		ri.Status = RunStatusComplete
	}
	r.evict()
}

// evict drops the oldest finished runs. Caller holds the lock.
func (r *RunRegistry) evict() {
	finished := make([]string, 0)
	iter := r.runs.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		if kv.Value.(*RunInfo).Status != RunStatusRunning {
			finished = append(finished, kv.Key.(string))
		}
	}
	for len(finished) > r.maxCompleted {
		r.runs.Delete(finished[0])
		finished = finished[1:]
	}
}

// Load returns a copy of the run with the given id.
func (r *RunRegistry) Load(id string) (ri RunInfo, ok bool) {
	r.RLock()
	defer r.RUnlock()
	v, ok := r.runs.Get(id)
	if ok {
		ri = *v.(*RunInfo)
	}
	return
}

// List returns copies of all known runs in start order.
func (r *RunRegistry) List() []RunInfo {
	r.RLock()
	defer r.RUnlock()
	list := make([]RunInfo, 0, r.runs.Len())
	iter := r.runs.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		list = append(list, *kv.Value.(*RunInfo))
	}
	return list
}
