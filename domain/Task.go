package domain

import (
	"github.com/fundwit/go-commons/types"
)

type TaskStatus string

const (
	TaskStatusTodo       = TaskStatus("TODO")
	TaskStatusInProgress = TaskStatus("IN_PROGRESS")
	TaskStatusDone       = TaskStatus("DONE")
)

type TaskPriority string

const (
	TaskPriorityLow    = TaskPriority("LOW")
	TaskPriorityMedium = TaskPriority("MEDIUM")
	TaskPriorityHigh   = TaskPriority("HIGH")
)

// Task is one unit of work on a loop. Tasks materialized from a workflow
// template carry the originating instance id and step id.
type Task struct {
	ID     types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	LoopID types.ID `json:"loopId"`

	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`

	AssignedTo types.ID        `json:"assignedTo"`
	DueTime    types.Timestamp `json:"dueTime" sql:"type:DATETIME(6)"`

	WorkflowInstanceID types.ID `json:"workflowInstanceId"`
	StepID             string   `json:"stepId"`

	CreatorID  types.ID        `json:"creatorId"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}
