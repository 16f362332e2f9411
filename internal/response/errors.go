package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// Authentication
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// Authorization
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrTeacherAccessOnly ErrCode = "TEACHER_ACCESS_ONLY"

	// Validation
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// Resources
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// Exam attempt
	ErrExamNotAvailable   ErrCode = "EXAM_NOT_AVAILABLE"
	ErrSessionNotActive   ErrCode = "SESSION_NOT_ACTIVE"
	ErrSessionCompleted   ErrCode = "SESSION_ALREADY_SUBMITTED"
	ErrExamTimeExpired    ErrCode = "EXAM_TIME_EXPIRED"
	ErrLanguageNotAllowed ErrCode = "LANGUAGE_NOT_SUPPORTED"
	ErrExecutionFailed    ErrCode = "EXECUTION_SERVICE_UNAVAILABLE"

	// Grading
	ErrMarksOutOfRange ErrCode = "MARKS_OUT_OF_RANGE"
	ErrMarksNotInteger ErrCode = "MARKS_NOT_INTEGER"
	ErrNotGradable     ErrCode = "RESPONSE_NOT_GRADABLE"

	// Server
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrTeacherAccessOnly:
		return "This resource is restricted to teachers."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	case ErrNotFound:
		return "The requested resource was not found."
	case ErrConflict:
		return "The resource already exists."

	case ErrExamNotAvailable:
		return "This exam is not currently available."
	case ErrSessionNotActive:
		return "You do not have an active attempt for this exam."
	case ErrSessionCompleted:
		return "This exam attempt has already been submitted."
	case ErrExamTimeExpired:
		return "The exam time has expired."
	case ErrLanguageNotAllowed:
		return "This programming language is not supported."
	case ErrExecutionFailed:
		return "The code execution service is unavailable. Please try again."

	case ErrMarksOutOfRange:
		return "Marks must be between zero and the question's maximum."
	case ErrMarksNotInteger:
		return "Marks must be a whole number."
	case ErrNotGradable:
		return "Multiple choice responses are graded automatically and cannot be changed."

	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
