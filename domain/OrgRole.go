package domain

import (
	"github.com/fundwit/go-commons/types"
)

const OrgRoleManager = "manager"
const OrgRoleAgent = "agent"

type OrgRole struct {
	OrgID types.ID `json:"orgId"`
	Role  string   `json:"role"`
}
