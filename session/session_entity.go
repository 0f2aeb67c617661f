package session

import (
	"context"
	"loopflow/authority"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
)

type Session struct {
	Context context.Context `json:"-"`

	Token    string                `json:"token"`
	Identity Identity              `json:"identity"`
	Perms    authority.Permissions `json:"perms"`
	OrgRoles authority.OrgRoles    `json:"orgRoles"`

	SigningTime time.Time `json:"-"`
}

type Identity struct {
	ID       types.ID `json:"id"`
	Name     string   `json:"name"`
	Nickname string   `json:"nickname"`
}

func (s *Session) Clone() Session {
	c := *s
	c.Perms = append(authority.Permissions{}, s.Perms...)
	c.OrgRoles = append(authority.OrgRoles{}, s.OrgRoles...)
	return c
}

// VisibleOrgs parses visible organization ids from Session.Perms
func (s *Session) VisibleOrgs() []types.ID {
	var orgIds []types.ID
	for _, v := range s.Perms {
		pairs := strings.Split(v, "_")
		if len(pairs) == 2 {
			id, err := types.ParseID(pairs[1])
			if err != nil {
				continue
			}
			orgIds = append(orgIds, id)
		}
	}
	if orgIds == nil {
		return []types.ID{}
	}
	return orgIds
}
