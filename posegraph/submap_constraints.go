package posegraph

import (
	"fmt"
	"slices"
	"sort"
	"sync"
)

// SubmapConstraint is a submap announced by the mapping server, with the
// optimized node indices it spans.
type SubmapConstraint struct {
	ID          int
	RobotName   string
	NodeIndices []int
}

// SubmapConstraintStore keeps the latest submap constraints per robot. It is
// guarded by its own lock, independent of the graph and signal state.
type SubmapConstraintStore struct {
	submaps map[string]map[int]SubmapConstraint
	mu      sync.Mutex
}

// NewSubmapConstraintStore creates an empty store
func NewSubmapConstraintStore() *SubmapConstraintStore {
	return &SubmapConstraintStore{submaps: make(map[string]map[int]SubmapConstraint)}
}

// Add merges the submaps of msg, replacing submaps with the same robot and
// id. It returns the number of submaps stored.
func (s *SubmapConstraintStore) Add(msg *SubmapConstraintMessage) (int, error) {
	if msg == nil || len(msg.Submaps) == 0 {
		return 0, fmt.Errorf("adding submap constraints: %w: no submaps", ErrMalformedInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, sm := range msg.Submaps {
		if sm.RobotName == "" || len(sm.NodeIndices) == 0 {
			continue
		}
		robot, ok := s.submaps[sm.RobotName]
		if !ok {
			robot = make(map[int]SubmapConstraint)
			s.submaps[sm.RobotName] = robot
		}
		robot[sm.ID] = SubmapConstraint{
			ID:          sm.ID,
			RobotName:   sm.RobotName,
			NodeIndices: slices.Clone(sm.NodeIndices),
		}
		added++
	}
	return added, nil
}

// ForRobot returns the submaps of robot ordered by id
func (s *SubmapConstraintStore) ForRobot(robot string) []SubmapConstraint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SubmapConstraint, 0, len(s.submaps[robot]))
	for _, sm := range s.submaps[robot] {
		sm.NodeIndices = slices.Clone(sm.NodeIndices)
		out = append(out, sm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the total number of stored submaps
func (s *SubmapConstraintStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, robot := range s.submaps {
		n += len(robot)
	}
	return n
}
