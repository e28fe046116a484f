package promotion

import (
	"time"

	"pubcash-backend/pkg/errutil"
	"pubcash-backend/services/account"
)

// AgeAt computes the integer age from a birth date, adjusted for whether
// the birthday has been reached in the current year.
func AgeAt(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() ||
		(now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// CheckEligibility is the pure predicate gating whether a user may
// interact with a promotion. The read path uses it advisorily; every
// interaction transaction re-runs it authoritatively.
//
// Municipality targeting compares raw strings against the owning
// client's municipality.
func CheckEligibility(user *account.User, promo *Promotion, ownerMunicipality string, now time.Time) error {
	switch promo.AgeBracket {
	case AgeBracketAll:
	case AgeBracket12To17, AgeBracket18Plus:
		if user.BirthDate == nil {
			return errutil.Forbidden("profile incomplete: birth date required", nil)
		}
		age := AgeAt(*user.BirthDate, now)
		if promo.AgeBracket == AgeBracket12To17 && (age < 12 || age > 17) {
			return errutil.Forbidden("not eligible: age bracket", nil)
		}
		if promo.AgeBracket == AgeBracket18Plus && age < 18 {
			return errutil.Forbidden("not eligible: age bracket", nil)
		}
	default:
		return errutil.Forbidden("not eligible: unknown age bracket", nil)
	}

	switch promo.Targeting {
	case TargetingAll:
	case TargetingSameMunicipality:
		if user.Municipality == "" || user.Municipality != ownerMunicipality {
			return errutil.Forbidden("not eligible: municipality targeting", nil)
		}
	default:
		return errutil.Forbidden("not eligible: unknown targeting", nil)
	}

	return nil
}

// Eligible is the boolean form used by the feed read path.
func Eligible(user *account.User, promo *Promotion, ownerMunicipality string, now time.Time) bool {
	return CheckEligibility(user, promo, ownerMunicipality, now) == nil
}
