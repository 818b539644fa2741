package posegraph

import (
	"fmt"
	"slices"
)

// VerificationBatch collects submap ids of a single robot for one
// verification request. Ids keep their first-seen order without duplicates.
type VerificationBatch struct {
	robot string
	ids   []int
	seen  map[int]struct{}
}

// NewVerificationBatch creates an empty batch
func NewVerificationBatch() *VerificationBatch {
	return &VerificationBatch{seen: make(map[int]struct{})}
}

// Append adds ids for robot. An empty robot name joins the pending batch.
// Ids for a robot other than the pending one are rejected with
// ErrIdentityConflict and the batch is left unchanged.
func (b *VerificationBatch) Append(robot string, ids ...int) error {
	if robot != "" && b.robot != "" && robot != b.robot {
		return fmt.Errorf("appending submaps of %s: %w: batch belongs to %s", robot, ErrIdentityConflict, b.robot)
	}
	if b.robot == "" {
		b.robot = robot
	}
	for _, id := range ids {
		if _, ok := b.seen[id]; ok {
			continue
		}
		b.seen[id] = struct{}{}
		b.ids = append(b.ids, id)
	}
	return nil
}

// RobotName returns the robot the batch belongs to
func (b *VerificationBatch) RobotName() string {
	return b.robot
}

// SubmapIDs returns a copy of the collected ids
func (b *VerificationBatch) SubmapIDs() []int {
	return slices.Clone(b.ids)
}

// IsEmpty reports whether no id has been collected
func (b *VerificationBatch) IsEmpty() bool {
	return len(b.ids) == 0
}

// Reset clears the batch
func (b *VerificationBatch) Reset() {
	b.robot = ""
	b.ids = nil
	clear(b.seen)
}
