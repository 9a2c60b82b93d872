package model

import "time"

// ActivityAction describes what produced an activity event.
type ActivityAction string

const (
	// ActionCreate records a new node.
	ActionCreate ActivityAction = "create"
	// ActionUpdate records a direct user edit.
	ActionUpdate ActivityAction = "update"
	// ActionDelete records a soft delete.
	ActionDelete ActivityAction = "delete"
	// ActionRestore records a restore of a soft-deleted node.
	ActionRestore ActivityAction = "restore"
	// ActionRecompute records a cascade-triggered aggregate patch.
	ActionRecompute ActivityAction = "recompute"
	// ActionModeToggle records an auto-calculate flag change.
	ActionModeToggle ActivityAction = "mode_toggle"
)

// ActivityEvent is one entry of a node's history.
type ActivityEvent struct {
	CreatedAt      time.Time      `json:"createdAt"`
	PreviousValues map[string]any `json:"previousValues,omitempty"`
	NewValues      map[string]any `json:"newValues,omitempty"`
	ID             string         `json:"id"`
	NodeType       NodeType       `json:"nodeType"`
	NodeID         string         `json:"nodeId"`
	Action         ActivityAction `json:"action"`
	Reason         string         `json:"reason,omitempty"`
	ChangedFields  []string       `json:"changedFields"`
}
