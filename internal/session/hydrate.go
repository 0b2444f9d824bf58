package session

import "time"

// LocalState is the slice of the device store the resolver reads.
// Defined here (point of use) so the store package stays decoupled.
type LocalState interface {
	GuestMode() bool
	Country() string
	Language() string
	WelcomeSeen() bool
}

// AuthSnapshot is the auth loader's view at hydration time.
type AuthSnapshot struct {
	Authenticated bool
	Loading       bool
	// Since is when the pending check started; zero when not loading.
	Since time.Time
}

// BusinessSnapshot is the business lookup's view at hydration time.
type BusinessSnapshot struct {
	HasBusiness bool
	Loading     bool
}

// Hydrate reads every signal exactly once and assembles the resolver
// input. Running this as a distinct phase, instead of re-evaluating
// against a store that is still filling in, is what keeps Resolve pure.
func Hydrate(local LocalState, auth AuthSnapshot, biz BusinessSnapshot, path string, devBypass bool, now time.Time) Signals {
	s := Signals{
		Path:            path,
		Authenticated:   auth.Authenticated,
		Guest:           local.GuestMode(),
		HasCountry:      local.Country() != "",
		HasLanguage:     local.Language() != "",
		WelcomeSeen:     local.WelcomeSeen(),
		HasBusiness:     biz.HasBusiness,
		DevBypass:       devBypass,
		LoadingAuth:     auth.Loading,
		LoadingBusiness: biz.Loading,
	}
	if auth.Loading && !auth.Since.IsZero() {
		s.AuthWait = now.Sub(auth.Since)
	}
	return s
}
