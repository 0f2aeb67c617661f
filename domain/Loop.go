package domain

import (
	"github.com/fundwit/go-commons/types"
)

type TransactionType string

const (
	TransactionTypePurchase  = TransactionType("PURCHASE")
	TransactionTypeSale      = TransactionType("SALE")
	TransactionTypeLease     = TransactionType("LEASE")
	TransactionTypeRefinance = TransactionType("REFINANCE")
)

var transactionTypes = []TransactionType{
	TransactionTypePurchase, TransactionTypeSale, TransactionTypeLease, TransactionTypeRefinance,
}

func (t TransactionType) IsValid() bool {
	for _, v := range transactionTypes {
		if v == t {
			return true
		}
	}
	return false
}

type LoopStatus string

const (
	LoopStatusActive   = LoopStatus("ACTIVE")
	LoopStatusClosed   = LoopStatus("CLOSED")
	LoopStatusArchived = LoopStatus("ARCHIVED")
)

// Loop is one real-estate transaction record. It owns tasks, documents,
// parties and signature requests, and carries the derived progress value
// written back by the progress calculator.
type Loop struct {
	ID   types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name string   `json:"name"`

	Address         string          `json:"address"`
	OrgID           types.ID        `json:"orgId"`
	TransactionType TransactionType `json:"transactionType"`
	Status          LoopStatus      `json:"status"`

	Progress int `json:"progress"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}
