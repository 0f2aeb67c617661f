package domain

import (
	"github.com/fundwit/go-commons/types"
)

type DocumentStatus string

const (
	DocumentStatusDraft    = DocumentStatus("DRAFT")
	DocumentStatusFinal    = DocumentStatus("FINAL")
	DocumentStatusArchived = DocumentStatus("ARCHIVED")
)

// Document is the metadata row of one loop document. Content storage is
// outside this core.
type Document struct {
	ID     types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	LoopID types.ID `json:"loopId"`

	Name     string         `json:"name"`
	Category string         `json:"category"`
	Status   DocumentStatus `json:"status"`

	CreatorID  types.ID        `json:"creatorId"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}
