package event

import (
	"github.com/sirupsen/logrus"
)

// EventHandler returns nil when it does not handle the event.
type EventHandler func(e *EventRecord) *EventHandleResult

type EventHandleResult struct {
	Success           bool
	Message           string
	HandlerIdentifier string
}

// EventHandlers run after the creating transaction commits; a failed
// handler never rolls back the audited change.
var EventHandlers []EventHandler

var InvokeHandlersFunc = invokeHandlers

func invokeHandlers(record *EventRecord) []EventHandleResult {
	results := []EventHandleResult{}
	for _, handler := range EventHandlers {
		r := handler(record)
		if r == nil {
			continue
		}

		results = append(results, *r)

		entry := logrus.WithField("sourceType", record.SourceType).WithField("sourceId", record.SourceId)
		if r.Success {
			entry.Info("event handled. ", r)
		} else {
			entry.Error("event handler failed. ", r)
		}
	}
	return results
}
