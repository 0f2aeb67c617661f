package bizerror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	ErrUnknownTransactionType = errors.New("unknown transaction type")
	ErrUnknownSigningOrder    = errors.New("unknown signing order")

	ErrDocumentNotInLoop    = errors.New("document does not belong to loop")
	ErrSignerNotEligible    = errors.New("signer is not an active party of loop")
	ErrExpirationNotFuture  = errors.New("expiration time must be in the future")
	ErrSignatureSigned      = errors.New("signature already signed")
	ErrSignatureDeclined    = errors.New("signature was declined")
	ErrSignatureRequestOver = errors.New("signature request is closed")
	ErrSignatureExpired     = errors.New("signature request expired")
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := "common.bad_param"
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message, Data: nil}
}

// ErrTemplateStepInvalid reports the exact step which broke a template
// invariant (duplicated id, or a dependency on a step id which is not
// declared in the same template).
type ErrTemplateStepInvalid struct {
	StepID string
	Reason string
}

func (e *ErrTemplateStepInvalid) Error() string {
	return fmt.Sprintf("invalid workflow step %q: %s", e.StepID, e.Reason)
}
func (e *ErrTemplateStepInvalid) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "workflow.invalid_step",
		Message: e.Error(), Data: e.StepID}
}

// ErrTemplateInUse is raised when deleting a template which already has
// materialized instances. The count is kept for the caller.
type ErrTemplateInUse struct {
	InstanceCount int
}

func (e *ErrTemplateInUse) Error() string {
	return fmt.Sprintf("workflow template is referenced by %d instance(s)", e.InstanceCount)
}
func (e *ErrTemplateInUse) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusConflict, Code: "workflow.template_in_use",
		Message: e.Error(), Data: e.InstanceCount}
}
