package domain

import (
	"github.com/fundwit/go-commons/types"
)

type PartyRole string

const (
	PartyRoleBuyer        = PartyRole("BUYER")
	PartyRoleSeller       = PartyRole("SELLER")
	PartyRoleBuyerAgent   = PartyRole("BUYER_AGENT")
	PartyRoleListingAgent = PartyRole("LISTING_AGENT")
	PartyRoleTitleCompany = PartyRole("TITLE_COMPANY")
	PartyRoleLender       = PartyRole("LENDER")
	PartyRoleInspector    = PartyRole("INSPECTOR")
	PartyRoleOther        = PartyRole("OTHER")
)

var partyRoles = []PartyRole{
	PartyRoleBuyer, PartyRoleSeller, PartyRoleBuyerAgent, PartyRoleListingAgent,
	PartyRoleTitleCompany, PartyRoleLender, PartyRoleInspector, PartyRoleOther,
}

func (r PartyRole) IsValid() bool {
	for _, v := range partyRoles {
		if v == r {
			return true
		}
	}
	return false
}

type PartyStatus string

const (
	PartyStatusActive   = PartyStatus("ACTIVE")
	PartyStatusInactive = PartyStatus("INACTIVE")
)

// Party is a participant of one loop, eligible as a signer or a task
// assignee only while ACTIVE.
type Party struct {
	ID     types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	LoopID types.ID `json:"loopId"`

	Name  string `json:"name"`
	Email string `json:"email"`

	Role   PartyRole   `json:"role"`
	Status PartyStatus `json:"status"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}
