package ban

import "github.com/blockhaven/classicd/pkg/classic/chat"

// Code is the machine-readable cause of a refused ban operation.
type Code string

const (
	CodeSelfTarget     Code = "self-target"
	CodeNoActionNeeded Code = "no-action-needed"
	CodeReasonRequired Code = "reason-required"
	CodePermissionLow  Code = "permission-too-low"
	CodeTargetExempt   Code = "target-exempt"
	CodeCancelled      Code = "cancelled-by-listener"
)

// OperationError is the single typed refusal raised by every guard of
// the ban/unban operations. It is raised before any mutation, so a
// caught OperationError guarantees no partial state. Command handlers
// catch it once at the top and relay ColoredMessage verbatim.
type OperationError struct {
	Code Code
	// ColoredMessage is the pre-rendered player-facing message.
	ColoredMessage string
}

func (e *OperationError) Error() string {
	return chat.Strip(e.ColoredMessage)
}

func opErr(code Code, colored string) *OperationError {
	return &OperationError{Code: code, ColoredMessage: colored}
}
