package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail indicates an account with the email already exists.
	ErrDuplicateEmail = errors.New("duplicate email")
	// ErrInvalidCredentials indicates login failure. Unknown email and wrong
	// password both map to this error.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotAuthenticated indicates the session carries no user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrTokenFetch indicates the client-credentials exchange failed.
	ErrTokenFetch = errors.New("token fetch failed")
	// ErrLookup indicates a single artist lookup failed.
	ErrLookup = errors.New("artist lookup failed")
	// ErrStoreUnavailable indicates the credential store could not serve the request.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage maps an error to a message that may be shown to visitors.
// Internal details never leak; unknown errors get a generic text.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicateEmail):
		return "Er bestaat al een account met dit e-mailadres."
	case errors.Is(err, ErrInvalidCredentials):
		return "E-mailadres of wachtwoord is onjuist."
	case errors.Is(err, ErrNotAuthenticated):
		return "Log eerst in om verder te gaan."
	case errors.Is(err, ErrTokenFetch), errors.Is(err, ErrLookup):
		return "Artiestgegevens zijn tijdelijk niet beschikbaar."
	case errors.Is(err, ErrStoreUnavailable):
		return "De database is tijdelijk niet bereikbaar."
	default:
		return "Oops er ging iets fout."
	}
}
