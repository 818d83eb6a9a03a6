package airquality

import "sync"

// Status is the lifecycle position of one user-visible acquisition.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// StateError is the user-visible error of a FetchState.
type StateError struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	Actionable bool      `json:"actionable"`
}

// FetchState is a snapshot of a Lifecycle. Data survives errors and reloads
// so the last good reading stays on screen.
type FetchState struct {
	Status   Status      `json:"status"`
	Data     *Reading    `json:"data"`
	Error    *StateError `json:"error"`
	Sequence uint64      `json:"sequence"`
}

// Lifecycle is the Idle -> Loading -> {Success, Error} state machine.
// Every Start tags the acquisition with a new sequence number; completions
// carrying any other number are stale and ignored.
type Lifecycle struct {
	mu sync.Mutex

	seq    uint64
	status Status
	data   *Reading
	err    *StateError

	// restored by Abandon
	settled    Status
	settledErr *StateError
}

// NewLifecycle returns a lifecycle in the Idle state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{status: StatusIdle, settled: StatusIdle}
}

// Start moves to Loading and returns the new sequence number. While already
// Loading it does nothing and returns ok=false.
func (l *Lifecycle) Start() (seq uint64, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.status == StatusLoading {
		return l.seq, false
	}
	l.settled, l.settledErr = l.status, l.err
	l.seq++
	l.status = StatusLoading
	l.err = nil
	return l.seq, true
}

// Succeed completes acquisition seq with r. It reports whether the result was
// accepted.
func (l *Lifecycle) Succeed(seq uint64, r Reading) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if seq != l.seq || l.status != StatusLoading {
		return false
	}
	l.status = StatusSuccess
	l.data = &r
	l.err = nil
	return true
}

// Fail completes acquisition seq with err, keeping the previous data.
// It reports whether the failure was accepted.
func (l *Lifecycle) Fail(seq uint64, err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if seq != l.seq || l.status != StatusLoading {
		return false
	}
	kind := KindOf(err)
	if kind == "" {
		kind = KindNetwork
	}
	l.status = StatusError
	l.err = &StateError{
		Kind:       kind,
		Message:    kind.Message(),
		Actionable: kind.Actionable(),
	}
	return true
}

// Abandon discards the in-flight acquisition: its eventual result will be
// stale and the state returns to where it was before Start.
func (l *Lifecycle) Abandon() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.status != StatusLoading {
		return false
	}
	l.seq++
	l.status = l.settled
	l.err = l.settledErr
	return true
}

// State returns a copy of the current state.
func (l *Lifecycle) State() FetchState {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := FetchState{Status: l.status, Sequence: l.seq}
	if l.data != nil {
		d := *l.data
		st.Data = &d
	}
	if l.err != nil {
		e := *l.err
		st.Error = &e
	}
	return st
}
