package types

// Step statuses reported by multi-step account operations.
const (
	StepOK      = "ok"
	StepSkipped = "skipped"
	StepFailed  = "failed"
)

// StepOutcome records how one step of a multi-step operation went.
// Operations such as approval and deletion keep going after a failed step
// and report every outcome to the caller.
type StepOutcome struct {
	Step   string `json:"step"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// WorkflowResult is the user after the operation plus its step report.
type WorkflowResult struct {
	User  *User         `json:"user,omitempty"`
	Steps []StepOutcome `json:"steps"`
}

// Failed reports whether any step failed.
func (r WorkflowResult) Failed() bool {
	for _, step := range r.Steps {
		if step.Status == StepFailed {
			return true
		}
	}
	return false
}
