package authcore

import "errors"

var (
	// ErrNoCredentials means no token was presented with the request.
	ErrNoCredentials = errors.New("no credentials provided")
	// ErrTokenMalformed means the token string could not be parsed at all.
	ErrTokenMalformed = errors.New("malformed token")
	// ErrSignatureInvalid means the token signature did not verify.
	ErrSignatureInvalid = errors.New("invalid token signature")
	// ErrTokenExpired means the token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidTokenType means a token of the wrong type was presented,
	// e.g. a refresh token used for request authentication.
	ErrInvalidTokenType = errors.New("invalid token type")
	// ErrTokenRevoked means this specific token was denylisted.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrSessionRevoked means the token's session was denylisted, which
	// invalidates all three sibling tokens of that issuance.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrUserRevoked means all of the subject's sessions were denylisted.
	ErrUserRevoked = errors.New("user sessions revoked")
	// ErrOriginMismatch means the token's origin claim does not match the
	// origin the request arrived from.
	ErrOriginMismatch = errors.New("token origin mismatch")
	// ErrOTPInvalid covers wrong, expired, and never-issued one-time codes.
	ErrOTPInvalid = errors.New("otp invalid or expired")
	// ErrOTPRateLimited means OTP issuance or verification was throttled.
	ErrOTPRateLimited = errors.New("otp rate limited")
	// ErrInvalidCredentials is returned by Login for any credential failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited means login attempts for the identifier or IP
	// exceeded the configured budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrUserNotFound means the user store has no matching record.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountInactive means the account exists but is disabled.
	ErrAccountInactive = errors.New("account inactive")
	// ErrStoreUnavailable wraps Redis or store failures that could not be
	// downgraded (revocation writes, OTP issuance).
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrRevocationIncomplete means a logout or rotation wrote only part of
	// its denylist entries. The accompanying result reports which scopes
	// succeeded; callers must not promise a full revocation.
	ErrRevocationIncomplete = errors.New("revocation incomplete")
	// ErrEngineNotReady means the engine was used before Build wired its
	// dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
)
