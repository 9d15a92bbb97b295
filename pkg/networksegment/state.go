// Package networksegment is the worked-example object kind for the
// State-Handler Framework: Provisioning -> Ready -> Deleting{
// DrainAllocatedIps, DBDelete} -> terminal delete, releasing its VLAN
// id and VNI back to the shared resource pools on the way out.
//
// Grounded in original_source/crates/api/src/state_controller/
// network_segment/handler.rs in full.
package networksegment

import (
	"encoding/json"
	"time"
)

// Phase is the closed set of controller states a network segment
// moves through, the Go rendering of NetworkSegmentControllerState
// (which is an enum with a nested NetworkSegmentDeletionState for its
// Deleting variant).
type Phase string

const (
	PhaseProvisioning     Phase = "provisioning"
	PhaseReady            Phase = "ready"
	PhaseDeletingDrainIps Phase = "deleting_drain_allocated_ips"
	PhaseDeletingDBDelete Phase = "deleting_db_delete"
)

// State is the decoded controller state for one network segment.
// DeleteAt is only meaningful in PhaseDeletingDrainIps; it records the
// earliest time the handler is allowed to re-check for zero allocated
// IPs and proceed to DBDelete.
type State struct {
	Phase    Phase      `json:"phase"`
	DeleteAt *time.Time `json:"delete_at,omitempty"`
}

// StateLabel implements statecontroller.StateLabeler.
func (s State) StateLabel() string { return string(s.Phase) }

// Initial is the state a newly created network segment object starts in.
func Initial() State { return State{Phase: PhaseProvisioning} }

// Codec implements statecontroller.StateCodec[State] using JSON, the
// same serialization the teacher's own config/cache-entry types use
// elsewhere in the codebase.
type Codec struct{}

func (Codec) Decode(data string) (State, error) {
	if data == "" {
		return Initial(), nil
	}
	var s State
	err := json.Unmarshal([]byte(data), &s)
	return s, err
}

func (Codec) Encode(s State) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
