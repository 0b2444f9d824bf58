package session

import "strings"

// Canonical routes the resolver can send the shell to.
const (
	RouteHome     = "/"
	RouteLogin    = "/login"
	RouteVerify   = "/auth/verify"
	RouteError    = "/auth/error"
	RouteWelcome  = "/welcome"
	RouteSetup    = "/setup-business"
	RouteCountry  = "/onboarding/country"
	RouteLanguage = "/onboarding/language"
)

// staticPrefixes are shell-internal paths that bypass the session gate.
var staticPrefixes = []string{"/_assets/", "/static/", "/favicon"}

func isStaticPath(path string) bool {
	for _, p := range staticPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// isOnboardingPath covers the flow that fills in missing locale signals;
// gating it would make the redirects it serves unreachable.
func isOnboardingPath(path string) bool {
	return strings.HasPrefix(path, "/onboarding")
}

// isPublicPath: reachable without any identity signal.
func isPublicPath(path string) bool {
	return path == RouteLogin || strings.HasPrefix(path, "/auth/")
}

// isAuthEntryPath: login/verify, where guest and dev-bypass sessions must
// not be parked.
func isAuthEntryPath(path string) bool {
	return path == RouteLogin || path == RouteVerify
}
