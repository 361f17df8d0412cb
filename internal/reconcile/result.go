package reconcile

// Status classifies the outcome of one task reconciliation.
type Status string

const (
	// StatusCompleted means segments were imported and reconciled.
	StatusCompleted Status = "completed"
	// StatusSkipped means the subset filter left nothing to import.
	StatusSkipped Status = "skipped"
	// StatusArtifactMissing means no output file was found for the task.
	StatusArtifactMissing Status = "artifact-missing"
)

// Result is the outcome of reconciling one task into one container.
// Container is nil unless Status is StatusCompleted.
type Result struct {
	TaskID       string
	TaskTitle    string
	Status       Status
	Container    Container
	SegmentCount int
}

// Completed reports whether the task produced a populated container.
func (r Result) Completed() bool {
	return r.Status == StatusCompleted
}
