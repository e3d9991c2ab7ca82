package daemon

import (
	"sort"
	"strconv"
	"sync"

	"github.com/yairfalse/logkeep/pkg/logresource"
)

// DriftType is the kind of out-of-band change.
type DriftType string

const (
	DriftAdded    DriftType = "added"
	DriftRemoved  DriftType = "removed"
	DriftModified DriftType = "modified"
)

// Drift is one change to a managed group that logkeep did not make.
type Drift struct {
	Type     DriftType
	Group    logresource.Group
	Previous *logresource.Group
	Changes  map[string]Change
}

// Change holds the before and after of one field.
type Change struct {
	Previous string
	Current  string
}

// DriftTracker remembers the managed groups seen at the end of a run and
// compares the next run's starting state against them.
type DriftTracker struct {
	mu          sync.RWMutex
	previous    map[string]logresource.Group
	initialized bool
}

// NewDriftTracker creates an empty tracker.
func NewDriftTracker() *DriftTracker {
	return &DriftTracker{previous: make(map[string]logresource.Group)}
}

// Compute compares current against the baseline. It returns nil before
// the first Update. Results are ordered by group name.
func (d *DriftTracker) Compute(current []logresource.Group) []Drift {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.initialized {
		return nil
	}

	currentMap := indexGroups(current)
	drift := make([]Drift, 0)

	for key, prev := range d.previous {
		curr, exists := currentMap[key]
		prevCopy := prev
		switch {
		case !exists:
			drift = append(drift, Drift{Type: DriftRemoved, Group: prev, Previous: &prevCopy})
		default:
			if changes := detectChanges(prev, curr); len(changes) > 0 {
				drift = append(drift, Drift{Type: DriftModified, Group: curr, Previous: &prevCopy, Changes: changes})
			}
		}
	}

	for key, curr := range currentMap {
		if _, exists := d.previous[key]; !exists {
			drift = append(drift, Drift{Type: DriftAdded, Group: curr})
		}
	}

	sort.Slice(drift, func(i, j int) bool { return drift[i].Group.Name < drift[j].Group.Name })
	return drift
}

// Update stores current as the new baseline.
func (d *DriftTracker) Update(current []logresource.Group) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.previous = indexGroups(current)
	d.initialized = true
}

func indexGroups(groups []logresource.Group) map[string]logresource.Group {
	m := make(map[string]logresource.Group, len(groups))
	for _, g := range groups {
		m[g.Key()] = g
	}
	return m
}

// detectChanges compares the identity-bearing fields of two observations.
// StoredBytes moves with every write and is ignored.
func detectChanges(prev, curr logresource.Group) map[string]Change {
	changes := make(map[string]Change)

	if prev.ARN != curr.ARN {
		changes["arn"] = Change{Previous: prev.ARN, Current: curr.ARN}
	}
	if !prev.CreatedAt.Equal(curr.CreatedAt) {
		changes["created_at"] = Change{Previous: prev.CreatedAt.String(), Current: curr.CreatedAt.String()}
	}
	if p, c := retention(prev.RetentionDays), retention(curr.RetentionDays); p != c {
		changes["retention_days"] = Change{Previous: p, Current: c}
	}

	return changes
}

func retention(days *int32) string {
	if days == nil {
		return "never"
	}
	return strconv.FormatInt(int64(*days), 10)
}
