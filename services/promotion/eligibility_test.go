package promotion

import (
	"testing"
	"time"

	"pubcash-backend/services/account"

	"github.com/stretchr/testify/require"
)

func TestAgeAt(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		birth time.Time
		want  int
	}{
		{"birthday passed this year", time.Date(2008, 3, 1, 0, 0, 0, 0, time.UTC), 18},
		{"birthday today", time.Date(2008, 6, 15, 0, 0, 0, 0, time.UTC), 18},
		{"birthday not yet reached", time.Date(2008, 9, 1, 0, 0, 0, 0, time.UTC), 17},
		{"day boundary", time.Date(2008, 6, 16, 0, 0, 0, 0, time.UTC), 17},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, AgeAt(tc.birth, now))
		})
	}
}

func TestCheckEligibility(t *testing.T) {
	now := time.Now()
	born := func(age int) *time.Time {
		d := now.AddDate(-age, 0, -1)
		return &d
	}

	tests := []struct {
		name         string
		birth        *time.Time
		userMun      string
		bracket      string
		targeting    string
		ownerMun     string
		wantEligible bool
	}{
		{"bracket all passes without birth date", nil, "A", AgeBracketAll, TargetingAll, "B", true},
		{"missing birth date fails age-gated bracket", nil, "A", AgeBracket18Plus, TargetingAll, "B", false},
		{"age 11 below teen bracket", born(11), "A", AgeBracket12To17, TargetingAll, "B", false},
		{"age 12 enters teen bracket", born(12), "A", AgeBracket12To17, TargetingAll, "B", true},
		{"age 17 still in teen bracket", born(17), "A", AgeBracket12To17, TargetingAll, "B", true},
		{"age 18 leaves teen bracket", born(18), "A", AgeBracket12To17, TargetingAll, "B", false},
		{"age 17 below adult bracket", born(17), "A", AgeBracket18Plus, TargetingAll, "B", false},
		{"age 18 enters adult bracket", born(18), "A", AgeBracket18Plus, TargetingAll, "B", true},
		{"same municipality matches", born(20), "Cocody", AgeBracketAll, TargetingSameMunicipality, "Cocody", true},
		{"different municipality rejected", born(20), "Plateau", AgeBracketAll, TargetingSameMunicipality, "Cocody", false},
		{"empty user municipality rejected", born(20), "", AgeBracketAll, TargetingSameMunicipality, "", false},
		{"both gates must pass", born(11), "Cocody", AgeBracket12To17, TargetingSameMunicipality, "Cocody", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			user := &account.User{BirthDate: tc.birth, Municipality: tc.userMun}
			promo := &Promotion{AgeBracket: tc.bracket, Targeting: tc.targeting}

			err := CheckEligibility(user, promo, tc.ownerMun, now)
			if tc.wantEligible {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
			require.Equal(t, tc.wantEligible, Eligible(user, promo, tc.ownerMun, now))
		})
	}
}
