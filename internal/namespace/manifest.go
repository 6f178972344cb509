package namespace

import (
	"sort"
	"sync"
)

// Status summarizes a bulk operation
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusFailed   Status = "failed"
	StatusEmpty    Status = "empty"
)

// Stage is the step of a per-key move that failed
type Stage string

const (
	// StageCopy failures leave the source intact and the destination unwritten
	StageCopy Stage = "copy"
	// StageDelete failures leave both the source and the destination present
	StageDelete Stage = "delete"
)

// KeyFailure records why one key of a bulk operation was not processed
type KeyFailure struct {
	Key         string `json:"key"`
	Destination string `json:"destination,omitempty"`
	Stage       Stage  `json:"stage,omitempty"`
	Reason      string `json:"reason"`
}

// Manifest is the outcome of a bulk operation over the keys under a prefix
type Manifest struct {
	Operation string       `json:"operation"`
	Succeeded []string     `json:"succeeded"`
	Failed    []KeyFailure `json:"failed"`
	Warning   string       `json:"warning,omitempty"`
}

// Status derives the overall outcome from the per-key results
func (m *Manifest) Status() Status {
	switch {
	case len(m.Succeeded) == 0 && len(m.Failed) == 0:
		return StatusEmpty
	case len(m.Failed) == 0:
		return StatusComplete
	case len(m.Succeeded) == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// Total is the number of keys the operation touched
func (m *Manifest) Total() int {
	return len(m.Succeeded) + len(m.Failed)
}

// DualPresent lists sources whose copy landed but whose delete failed, so
// both the old and the new key exist
func (m *Manifest) DualPresent() []KeyFailure {
	var out []KeyFailure
	for _, f := range m.Failed {
		if f.Stage == StageDelete {
			out = append(out, f)
		}
	}
	return out
}

// collector accumulates results from concurrent per-key workers
type collector struct {
	mu       sync.Mutex
	manifest *Manifest
}

func newCollector(op string) *collector {
	return &collector{manifest: &Manifest{
		Operation: op,
		Succeeded: []string{},
		Failed:    []KeyFailure{},
	}}
}

func (c *collector) succeed(key string) {
	c.mu.Lock()
	c.manifest.Succeeded = append(c.manifest.Succeeded, key)
	c.mu.Unlock()
}

func (c *collector) fail(f KeyFailure) {
	c.mu.Lock()
	c.manifest.Failed = append(c.manifest.Failed, f)
	c.mu.Unlock()
}

// result sorts the manifest so reports are deterministic regardless of
// worker scheduling
func (c *collector) result() *Manifest {
	c.mu.Lock()
	defer c.mu.Unlock()
	sort.Strings(c.manifest.Succeeded)
	sort.Slice(c.manifest.Failed, func(i, j int) bool {
		return c.manifest.Failed[i].Key < c.manifest.Failed[j].Key
	})
	return c.manifest
}
