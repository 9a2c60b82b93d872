package rollup

import (
	"github.com/Veraticus/budget-rollup/internal/model"
)

// Mode is a node's financial calculation mode.
type Mode string

const (
	// ModeAuto derives utilized and obligated amounts from children.
	ModeAuto Mode = "auto"
	// ModeManual keeps the stored amounts as entered by a user.
	ModeManual Mode = "manual"
)

// ModeOf returns the current mode of n.
func ModeOf(n model.Node) Mode {
	if n.AutoCalculate {
		return ModeAuto
	}
	return ModeManual
}

// ParseMode accepts "auto" or "manual".
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeAuto, ModeManual:
		return Mode(s), true
	}
	return "", false
}

// Apply returns the fields a recompute writes to n. Status tallies always
// follow the children; utilized and obligated follow them only in auto mode.
// Utilization rate is left to the caller, which computes it from the final
// allocated and utilized values.
func Apply(n model.Node, r Result) model.NodePatch {
	tallies := r.StatusCounts
	patch := model.NodePatch{
		Tallies:         &tallies,
		ExpectedVersion: n.Version,
	}

	if ModeOf(n) == ModeAuto {
		utilized := r.TotalUtilized
		obligated := r.TotalObligated
		patch.Utilized = &utilized
		patch.Obligated = &obligated
	}

	return patch
}

// Transition returns the patch that moves n into target. Switching to
// manual only flips the flag, freezing the current amounts as the manual
// baseline. Switching to auto flips the flag and overwrites the amounts
// with r, discarding the manual values. The second return is false when n
// is already in target.
func Transition(n model.Node, target Mode, r Result) (model.NodePatch, bool) {
	if ModeOf(n) == target {
		return model.NodePatch{}, false
	}

	auto := target == ModeAuto
	n.AutoCalculate = auto

	patch := Apply(n, r)
	patch.AutoCalculate = &auto
	return patch, true
}
