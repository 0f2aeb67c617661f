package testinfra

import (
	"context"
	"loopflow/authority"
	"loopflow/domain"
	"loopflow/session"
	"strings"

	"github.com/fundwit/go-commons/types"
)

// BuildSecCtx builds a session carrying perms like "manager_<orgId>"
func BuildSecCtx(uid types.ID, perms ...string) *session.Session {
	orgRoles := authority.OrgRoles{}
	for _, perm := range perms {
		idx := strings.Index(perm, "_")
		if idx > 0 {
			role := perm[0:idx]
			orgId, err := types.ParseID(perm[idx+1:])
			if err != nil {
				continue
			}
			orgRoles = append(orgRoles, domain.OrgRole{OrgID: orgId, Role: role})
		}
	}

	return &session.Session{Context: context.Background(), Token: "test-token",
		Identity: session.Identity{ID: uid, Name: "user " + uid.String()},
		Perms:    perms, OrgRoles: orgRoles}
}
