package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden        ErrCode = "FORBIDDEN"
	ErrPermissionDenied ErrCode = "PERMISSION_DENIED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation       ErrCode = "VALIDATION_ERROR"
	ErrInvalidID        ErrCode = "INVALID_ID"
	ErrInvalidPayload   ErrCode = "INVALID_PAYLOAD"
	ErrInvalidDuration  ErrCode = "INVALID_DURATION"
	ErrInvalidTimestamp ErrCode = "INVALID_TIMESTAMP"
	ErrEmptyQuiz        ErrCode = "EMPTY_QUIZ"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam sessions ─────────────────────────────────────────────────
	ErrSessionInactive  ErrCode = "SESSION_INACTIVE"
	ErrSessionNotOpen   ErrCode = "SESSION_NOT_OPEN"
	ErrAlreadySubmitted ErrCode = "ALREADY_SUBMITTED"
	ErrTimeExpired      ErrCode = "TIME_EXPIRED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrStorageFailure ErrCode = "STORAGE_FAILURE"
	ErrInternal       ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You are not allowed to access this resource."
	case ErrPermissionDenied:
		return "Your role does not allow this action."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Some fields are invalid."
	case ErrInvalidID:
		return "The identifier is malformed."
	case ErrInvalidPayload:
		return "The request body could not be read."
	case ErrInvalidDuration:
		return "The duration is too short for the number of questions."
	case ErrInvalidTimestamp:
		return "The start time is not a valid timestamp."
	case ErrEmptyQuiz:
		return "The question set has no questions."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The requested resource was not found."
	case ErrConflict:
		return "The operation conflicts with existing data."

	// ─── Exam sessions ─────────────────────────────────────────────────
	case ErrSessionInactive:
		return "This exam session has been disabled."
	case ErrSessionNotOpen:
		return "This exam session is not open right now."
	case ErrAlreadySubmitted:
		return "This attempt has already been submitted."
	case ErrTimeExpired:
		return "The time for this attempt has run out. Submit your answers."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Try again shortly."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrStorageFailure:
		return "The change could not be saved. Nothing was recorded."
	case ErrInternal:
		return "An internal error occurred."
	default:
		return "An unknown error occurred."
	}
}
