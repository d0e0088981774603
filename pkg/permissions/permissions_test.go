package permissions

import (
	"testing"

	"neuracall-backend/pkg/models"
	"neuracall-backend/pkg/session"

	"github.com/stretchr/testify/assert"
)

func TestPredicateTable(t *testing.T) {
	admin := &session.Session{Role: models.RoleAdmin}
	supervisor := &session.Session{Role: models.RoleSupervisor}
	member := &session.Session{Role: models.RoleMember}
	cofounder := &session.Session{Role: models.RoleCofounder}
	founderMember := &session.Session{Role: models.RoleMember, Founder: true}

	tests := []struct {
		name string
		fn   func(*session.Session) bool
		want map[*session.Session]bool
	}{
		{
			name: "CanViewFinancials",
			fn:   CanViewFinancials,
			want: map[*session.Session]bool{
				admin: true, supervisor: true, cofounder: true,
				founderMember: true, member: false, nil: false,
			},
		},
		{
			name: "CanViewTreasury",
			fn:   CanViewTreasury,
			want: map[*session.Session]bool{
				admin: true, supervisor: true, cofounder: true,
				founderMember: true, member: false, nil: false,
			},
		},
		{
			name: "CanViewExpenses",
			fn:   CanViewExpenses,
			want: map[*session.Session]bool{
				admin: true, supervisor: true, cofounder: true,
				founderMember: true, member: false, nil: false,
			},
		},
		{
			name: "CanManageUsers",
			fn:   CanManageUsers,
			want: map[*session.Session]bool{
				admin: true, founderMember: true,
				supervisor: false, cofounder: false, member: false, nil: false,
			},
		},
		{
			name: "CanEditSettings",
			fn:   CanEditSettings,
			want: map[*session.Session]bool{
				admin: true, founderMember: true,
				supervisor: false, cofounder: false, member: false, nil: false,
			},
		},
		{
			name: "CanViewAll360",
			fn:   CanViewAll360,
			want: map[*session.Session]bool{
				founderMember: true,
				admin:         false, supervisor: false, cofounder: false, member: false, nil: false,
			},
		},
	}

	label := func(s *session.Session) string {
		switch s {
		case admin:
			return "admin"
		case supervisor:
			return "supervisor"
		case member:
			return "member"
		case cofounder:
			return "cofounder"
		case founderMember:
			return "founder"
		default:
			return "nil"
		}
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for sess, want := range tt.want {
				assert.Equal(t, want, tt.fn(sess), "%s(%s)", tt.name, label(sess))
			}
		})
	}
}

func TestFounderFlagOverridesRole(t *testing.T) {
	// A founder keeps elevated visibility regardless of their role row.
	s := &session.Session{Role: models.RoleMember, Founder: true}
	assert.True(t, CanViewFinancials(s))
	assert.True(t, CanManageUsers(s))
	assert.True(t, CanViewAll360(s))
}
