// Package session decides, from the combined identity signals, what the
// app shell should do with the current navigation: render it, hold on a
// loading state, or redirect. Resolve is a pure function: every signal
// it consumes is hydrated up front, so the same Signals always produce
// the same Decision.
package session

import "time"

// AuthHoldTimeout bounds how long the resolver will hold on a pending
// auth check before proceeding as if it had finished. Liveness only:
// data access is still authorized server-side.
const AuthHoldTimeout = 3 * time.Second

type DecisionKind int

const (
	// Render lets the requested path through.
	Render DecisionKind = iota
	// Hold keeps the current view on a loading state without redirecting.
	Hold
	// Redirect sends the shell to Decision.Target.
	Redirect
)

func (k DecisionKind) String() string {
	switch k {
	case Render:
		return "render"
	case Hold:
		return "hold"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

type Decision struct {
	Kind   DecisionKind
	Target string
}

func render() Decision { return Decision{Kind: Render} }

func hold() Decision { return Decision{Kind: Hold} }

func redirectTo(t string) Decision { return Decision{Kind: Redirect, Target: t} }

// Signals is the full input set for one resolution. Each field comes from
// a different source (session token, device store, business lookup); the
// resolver itself never fetches anything.
type Signals struct {
	Path string

	Authenticated bool
	Guest         bool

	HasCountry  bool
	HasLanguage bool
	WelcomeSeen bool
	HasBusiness bool

	DevBypass bool

	LoadingAuth     bool
	LoadingBusiness bool
	// AuthWait is how long the auth check has been pending.
	AuthWait time.Duration
}

// Resolve evaluates the admission rules top to bottom and returns the
// first that applies. The order is load-bearing: locale gates precede
// identity gates, and loading holds precede the unauthenticated redirect
// so a slow auth check never bounces a signed-in user to login.
func Resolve(s Signals) Decision {
	if isStaticPath(s.Path) {
		return render()
	}
	if isOnboardingPath(s.Path) {
		return render()
	}

	if !isPublicPath(s.Path) {
		if !s.HasCountry {
			return redirectTo(RouteCountry)
		}
		if !s.HasLanguage {
			return redirectTo(RouteLanguage)
		}
	}

	if s.DevBypass && !isAuthEntryPath(s.Path) {
		return render()
	}

	if s.Guest && !isAuthEntryPath(s.Path) {
		return render()
	}

	if s.LoadingAuth && s.AuthWait < AuthHoldTimeout && !isPublicPath(s.Path) {
		return hold()
	}
	if s.Authenticated && s.LoadingBusiness {
		return hold()
	}

	if !s.Authenticated && !s.Guest && !isPublicPath(s.Path) {
		return redirectTo(RouteLogin)
	}

	if s.Authenticated && s.HasBusiness && !s.WelcomeSeen && s.Path != RouteWelcome {
		return redirectTo(RouteWelcome)
	}
	if s.Authenticated && !s.HasBusiness && s.Path != RouteSetup {
		return redirectTo(RouteSetup)
	}

	settled := (s.Authenticated && s.HasBusiness) ||
		(s.Guest && s.HasCountry && s.HasLanguage)
	if settled && (isAuthEntryPath(s.Path) || s.Path == RouteSetup) {
		return redirectTo(RouteHome)
	}
	return render()
}
