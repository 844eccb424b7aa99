// Package subscription decides whether a tenant's trial or paid plan lets
// it perform mutating actions.
package subscription

import (
	"encoding/json"
	"errors"
	"fmt"
)

// State is the outcome of a subscription check.
type State string

const (
	StateActive   State = "active"
	StateInactive State = "inactive"
	// StateUnknown means the check could not be completed. Callers treat it
	// as allowed and show a degraded notice.
	StateUnknown State = "unknown"
)

// ErrInactive is returned by enforcement points when a tenant is explicitly
// inactive.
var ErrInactive = errors.New("subscription inactive")

// Result is the tagged answer of the gate.
type Result struct {
	State  State
	Reason string
}

// Active builds an active result.
func Active(reason string) Result { return Result{State: StateActive, Reason: reason} }

// Inactive builds an inactive result.
func Inactive(reason string) Result { return Result{State: StateInactive, Reason: reason} }

// Unknown builds an indeterminate result.
func Unknown(reason string) Result { return Result{State: StateUnknown, Reason: reason} }

// Allows reports whether mutating actions may proceed. Only an explicit
// inactive state blocks.
func (r Result) Allows() bool {
	return r.State != StateInactive
}

// Known reports whether the check reached a definite answer.
func (r Result) Known() bool {
	return r.State == StateActive || r.State == StateInactive
}

// Bool returns the tri-state flag: true, false or nil when unknown.
func (r Result) Bool() *bool {
	if !r.Known() {
		return nil
	}
	v := r.State == StateActive
	return &v
}

type resultJSON struct {
	Active *bool  `json:"active"`
	State  State  `json:"state"`
	Reason string `json:"reason,omitempty"`
}

// MarshalJSON renders {"active": true|false|null, "state": ..., "reason": ...}.
func (r Result) MarshalJSON() ([]byte, error) {
	state := r.State
	if state == "" {
		state = StateUnknown
	}
	return json.Marshal(resultJSON{Active: r.Bool(), State: state, Reason: r.Reason})
}

// UnmarshalJSON accepts the form produced by MarshalJSON. When state is
// absent it is derived from the active flag.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.State {
	case StateActive, StateInactive, StateUnknown:
		r.State = raw.State
	case "":
		switch {
		case raw.Active == nil:
			r.State = StateUnknown
		case *raw.Active:
			r.State = StateActive
		default:
			r.State = StateInactive
		}
	default:
		return fmt.Errorf("subscription: unknown state %q", raw.State)
	}
	r.Reason = raw.Reason
	return nil
}
