package verification

import "fmt"

// InvalidTransitionError reports a state machine violation, naming the
// task's current status and the attempted target.
type InvalidTransitionError struct {
	Current   Status
	Attempted Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move task from %s to %s", e.Current, e.Attempted)
}

// IneligibleCollaboratorError is returned when assignment targets a
// collaborator without an effective contract.
type IneligibleCollaboratorError struct {
	CollaboratorID string
	Reason         string
}

func (e IneligibleCollaboratorError) Error() string {
	return fmt.Sprintf("collaborator %s is not eligible: %s", e.CollaboratorID, e.Reason)
}

// OutOfRangeError is returned when a check-in happens outside the
// station's geofence. The task state is untouched.
type OutOfRangeError struct {
	DistanceM int
	RadiusM   int
}

func (e OutOfRangeError) Error() string {
	return fmt.Sprintf("too far from station: %dm, maximum allowed %dm", e.DistanceM, e.RadiusM)
}

// NotAssigneeError is returned when someone other than the assignee
// attempts a collaborator-side transition.
type NotAssigneeError struct {
	TaskID string
}

func (e NotAssigneeError) Error() string {
	return fmt.Sprintf("task %s is not assigned to you", e.TaskID)
}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
