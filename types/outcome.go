package types

// OutcomeStatus classifies how a command ended.
// Every failure kind has exactly one status so the CLI can map it to a
// distinct exit code and message.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates the command completed.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeBuildFailed indicates the compile or package stage failed or timed out.
	OutcomeBuildFailed OutcomeStatus = "build_failed"
	// OutcomeToolMissing indicates a required external tool was not found.
	OutcomeToolMissing OutcomeStatus = "tool_missing"
	// OutcomeDeviceNotFound indicates an explicit device path does not exist.
	OutcomeDeviceNotFound OutcomeStatus = "device_not_found"
	// OutcomeUploadFailed indicates the flash stage failed or timed out.
	OutcomeUploadFailed OutcomeStatus = "upload_failed"
	// OutcomeStaleArtifact indicates the image no longer matches its source.
	OutcomeStaleArtifact OutcomeStatus = "stale_artifact"
	// OutcomeInvalidConfig indicates flags or config values were rejected.
	OutcomeInvalidConfig OutcomeStatus = "invalid_config"
	// OutcomeCancelled indicates the operator interrupted the command.
	OutcomeCancelled OutcomeStatus = "cancelled"
	// OutcomeError is an unclassified failure.
	OutcomeError OutcomeStatus = "error"
)

// Outcome is the terminal result of one command.
type Outcome struct {
	// Status is the outcome classification.
	Status OutcomeStatus `json:"status" yaml:"status"`
	// Message is a human-readable, actionable description.
	Message string `json:"message" yaml:"message"`
	// Detail carries captured tool output for failures, if any.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// IsSuccess reports whether the outcome is a success.
func (o *Outcome) IsSuccess() bool {
	return o != nil && o.Status == OutcomeSuccess
}
