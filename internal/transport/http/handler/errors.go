package handler

const (
	errInternalServer = "Internal server error"
	errRateLimited    = "Too many sign-in links requested, try again later"
	errBusinessExists = "Business profile already exists"
)

// Redirect reasons carried to the client error page. Expired and used are
// recoverable by requesting a fresh link; invalid is not.
const (
	reasonInvalid = "invalid"
	reasonExpired = "expired"
	reasonUsed    = "used"
)
