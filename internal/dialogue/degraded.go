package dialogue

import "fmt"

// Stage names a pipeline step that can degrade.
type Stage string

const (
	StageHistoryLoad   Stage = "history_load"
	StageClassify      Stage = "classify"
	StageCatalog       Stage = "catalog"
	StageFormat        Stage = "format"
	StageBooking       Stage = "booking"
	StageCompletion    Stage = "completion"
	StageHistoryAppend Stage = "history_append"
)

// Reason is a machine-readable cause attached to a Degraded value.
type Reason string

const (
	ReasonStoreUnavailable Reason = "store_unavailable"
	ReasonCommitFailed     Reason = "commit_failed"
	ReasonCompletionFailed Reason = "completion_failed"
	ReasonEmptyCompletion  Reason = "empty_completion"
	ReasonPanic            Reason = "panic"
)

// Degraded records a collaborator failure that was absorbed instead of
// aborting the pipeline.
type Degraded struct {
	Stage  Stage
	Reason Reason
	Err    error
}

func (d *Degraded) Error() string {
	if d.Err == nil {
		return fmt.Sprintf("%s: %s", d.Stage, d.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", d.Stage, d.Reason, d.Err)
}

func (d *Degraded) Unwrap() error { return d.Err }

func degrade(stage Stage, reason Reason, err error) *Degraded {
	return &Degraded{Stage: stage, Reason: reason, Err: err}
}
