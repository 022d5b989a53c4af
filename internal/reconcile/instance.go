// ABOUTME: Declarative instance model: desired state set by operators, actual state set by the reconciler.
// ABOUTME: Instances are persisted one JSON record per id.

package reconcile

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrInstanceNotFound indicates no record exists for the id.
var ErrInstanceNotFound = errors.New("instance not found")

// ErrInvalidInstance indicates a record that cannot be reconciled.
var ErrInvalidInstance = errors.New("invalid instance")

// DesiredState is what the operator asked for.
type DesiredState string

const (
	DesiredRunning DesiredState = "running"
	DesiredStopped DesiredState = "stopped"
)

// ActualState is what the reconciler last observed or did.
type ActualState string

const (
	ActualQueued   ActualState = "queued"
	ActualStarting ActualState = "starting"
	ActualRunning  ActualState = "running"
	ActualStopping ActualState = "stopping"
	ActualStopped  ActualState = "stopped"
)

// Instance is one fleet member.
type Instance struct {
	ID        string            `json:"id"`
	Image     string            `json:"image"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	Desired   DesiredState      `json:"desired"`
	Actual    ActualState       `json:"actual"`
	MachineID string            `json:"machineId,omitempty"`

	// Remove asks the reconciler to delete the record once stopped.
	Remove bool `json:"remove,omitempty"`

	LastError string    `json:"lastError,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,62}$`)

// ValidID reports whether id is usable as a record file name.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Validate checks the fields the reconciler depends on.
func (i *Instance) Validate() error {
	if !ValidID(i.ID) {
		return fmt.Errorf("%w: bad id %q", ErrInvalidInstance, i.ID)
	}
	switch i.Desired {
	case DesiredRunning:
		if i.Image == "" {
			return fmt.Errorf("%w: %s: image is required", ErrInvalidInstance, i.ID)
		}
	case DesiredStopped:
	default:
		return fmt.Errorf("%w: %s: desired state %q", ErrInvalidInstance, i.ID, i.Desired)
	}
	return nil
}

// Converged reports whether the actual state satisfies the desired one.
func (i *Instance) Converged() bool {
	switch i.Desired {
	case DesiredRunning:
		return i.Actual == ActualRunning && i.MachineID != ""
	case DesiredStopped:
		return i.Actual == ActualStopped && i.MachineID == ""
	}
	return false
}
