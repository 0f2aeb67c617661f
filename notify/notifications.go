package notify

import (
	"loopflow/common"

	"github.com/fundwit/go-commons/types"
)

// Delivery of notifications (mail, push) happens outside this service.
// Callers treat every dispatch as best-effort: a returned error is logged
// and never fails the triggering operation.

type SignatureNotification struct {
	SignerName  string
	SignerEmail string

	DocumentName string
	RequestTitle string
	Message      string

	SignURL   string
	ExpiresAt types.Timestamp
}

type TaskAssignmentNotification struct {
	AssigneeName  string
	AssigneeEmail string

	TaskTitle   string
	DueTime     types.Timestamp
	LoopAddress string
	TaskURL     string
}

var (
	NotifySignatureRequestedFunc = notifySignatureRequested
	NotifyTaskAssignedFunc       = notifyTaskAssigned
)

func notifySignatureRequested(n *SignatureNotification) error {
	common.Log.WithField("signer", n.SignerEmail).WithField("request", n.RequestTitle).
		WithField("document", n.DocumentName).Info("signature requested notification dispatched")
	return nil
}

func notifyTaskAssigned(n *TaskAssignmentNotification) error {
	common.Log.WithField("assignee", n.AssigneeEmail).WithField("task", n.TaskTitle).
		Info("task assignment notification dispatched")
	return nil
}
