package models

// Machine-readable error codes returned alongside HTTP statuses.
const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeWrongCredentials    = "WRONG_CREDENTIALS"
	ErrCodeDuplicateUser       = "DUPLICATE_USER"
	ErrCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeUserBanned          = "USER_BANNED"
	ErrCodeTokenInvalid        = "TOKEN_INVALID"
	ErrCodeTokenExpired        = "TOKEN_EXPIRED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	ErrCodeSelectionInvalid    = "SELECTION_INVALID"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeGenerationFailed    = "GENERATION_FAILED"
	ErrCodeGenerationTimeout   = "GENERATION_TIMEOUT"
	ErrCodeStatusCheckFailed   = "STATUS_CHECK_FAILED"
	ErrCodeNoImagesFound       = "NO_IMAGES_FOUND"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// ErrorResponse - стандартная структура для ответа об ошибке в формате JSON.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Shortfall is set only for INSUFFICIENT_CREDITS responses and carries
	// the exact number of credits the user is missing.
	Shortfall int `json:"shortfall,omitempty"`
}
