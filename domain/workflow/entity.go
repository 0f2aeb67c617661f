package workflow

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"loopflow/domain"

	"github.com/fundwit/go-commons/types"
)

// WorkflowStep is one declared step of a template. Dependencies reference
// sibling step ids only; the closed-reference invariant is enforced at
// authoring time.
type WorkflowStep struct {
	ID    string `json:"id" binding:"required"`
	Title string `json:"title" binding:"required"`
	Order int    `json:"order"`

	EstimatedDays int      `json:"estimatedDays"`
	Dependencies  []string `json:"dependencies"`

	AutoAssignRole domain.PartyRole `json:"autoAssignRole"`

	RequiresDocument  bool `json:"requiresDocument"`
	RequiresSignature bool `json:"requiresSignature"`
}

type WorkflowSteps []WorkflowStep

func (t WorkflowSteps) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&t)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (c *WorkflowSteps) Scan(v interface{}) error {
	jsonString, ok := v.(string)
	if !ok {
		jsonByte, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonByte)
	}
	return json.Unmarshal([]byte(jsonString), c)
}

type WorkflowTemplate struct {
	ID   types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name string   `json:"name"`

	OrgID       types.ID `json:"orgId"`
	Description string   `json:"description"`

	Steps WorkflowSteps `json:"steps" sql:"type:TEXT"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

type InstanceStatus string

const (
	InstanceStatusActive    = InstanceStatus("ACTIVE")
	InstanceStatusCompleted = InstanceStatus("COMPLETED")
	InstanceStatusCancelled = InstanceStatus("CANCELLED")
)

// WorkflowInstance is the one-time application of a template to a loop.
// Steps is a frozen copy taken at application time; later template edits
// never reach an instance.
type WorkflowInstance struct {
	ID     types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	LoopID types.ID `json:"loopId"`

	TemplateID types.ID `json:"templateId"`
	OrgID      types.ID `json:"orgId"`
	Name       string   `json:"name"`

	Steps  WorkflowSteps  `json:"steps" sql:"type:TEXT"`
	Status InstanceStatus `json:"status"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

type TemplateCreation struct {
	Name        string   `json:"name" binding:"required"`
	OrgID       types.ID `json:"orgId" binding:"required"`
	Description string   `json:"description"`

	Steps []WorkflowStep `json:"steps" binding:"required,dive"`
}

type TemplateUpdating struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`

	Steps []WorkflowStep `json:"steps" binding:"required,dive"`
}

type TemplateQuery struct {
	OrgID types.ID `form:"orgId" json:"orgId"`
	Name  string   `form:"name" json:"name"`
}

// TemplateID comes from the request path, not the body
type TemplateApplication struct {
	LoopID     types.ID `json:"loopId" binding:"required"`
	TemplateID types.ID `json:"templateId"`
}

// WorkflowApplyResult carries the created instance together with the
// tasks materialized from its steps, in step order.
type WorkflowApplyResult struct {
	Instance WorkflowInstance `json:"instance"`
	Tasks    []domain.Task    `json:"tasks"`
}
