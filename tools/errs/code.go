package errs

// Error codes grouped by failure class. The HTTP layer maps these onto
// status codes; validation failures ride on a 200 with success=false.
const (
	ArgsError     = 1001 // missing/malformed input
	AuthError     = 1101 // bad credentials, missing/invalid/expired token
	NotFoundError = 1201 // referenced entity absent
	NetworkError  = 1301 // transient connectivity failure
	ServerError   = 1500 // unexpected fault
)

var (
	ErrArgs               = NewCodeError(ArgsError, "missing required fields")
	ErrEmptyPayload       = NewCodeError(ArgsError, "message has no text or image")
	ErrInvalidCredentials = NewCodeError(AuthError, "Invalid credentials")
	ErrAccountExists      = NewCodeError(AuthError, "Account already exists")
	ErrTokenInvalid       = NewCodeError(AuthError, "Unauthorized: Invalid Token")
	ErrTokenMissing       = NewCodeError(AuthError, "Unauthorized: No Token Provided")
	ErrUserNotFound       = NewCodeError(NotFoundError, "User not found")
	ErrInternal           = NewCodeError(ServerError, "Internal Server Error")
)
