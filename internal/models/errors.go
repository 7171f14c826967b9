package models

import (
	"errors"
	"fmt"
)

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound      = errors.New("resource not found")
	ErrFileNotFound  = errors.New("file not found")
	ErrBatchNotFound = errors.New("batch not found")
	ErrUnitNotFound  = errors.New("batch unit not found")

	// User & Authentication Errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user with this username already exists")
	ErrEmailAlreadyExists = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserBanned         = errors.New("user is banned")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")

	// Token Errors
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenNotFound  = errors.New("token not found in storage")

	// Credit Ledger Errors
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrSettingNotFound     = errors.New("admin setting not found")

	// Selection & Settings Errors
	ErrSelectionFull     = errors.New("selection already contains the maximum of 4 images")
	ErrSelectionEmpty    = errors.New("at least one image must be selected")
	ErrDuplicateImage    = errors.New("image is already selected")
	ErrImageNotCandidate = errors.New("image is not among the fetched candidates")
	ErrInvalidSlot       = errors.New("slot index out of range")
	ErrInvalidSettings   = errors.New("invalid image settings")
	ErrInvalidTransition = errors.New("operation not allowed in the current unit state")

	// Generation & Polling Errors
	ErrGenerationFailed     = errors.New("video generation failed")
	ErrGenerationTimeout    = errors.New("video generation timed out")
	ErrStatusCheckFailed    = errors.New("cannot check generation status")
	ErrGenerationInProgress = errors.New("generation is already in progress for this unit")

	// Image Source Errors
	ErrNoImagesFound   = errors.New("no images found for the given source")
	ErrInvalidFileType = errors.New("file must be an image")
	ErrEmptySheet      = errors.New("spreadsheet contains no importable URLs")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrInvalidInput   = errors.New("invalid input data")
)

// InsufficientCreditsError carries the exact amounts behind a rejected
// deduction so handlers can tell the client how many credits are missing.
type InsufficientCreditsError struct {
	Cost      int
	Balance   int
	Shortfall int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d, have %d", e.Cost, e.Balance)
}

// Unwrap keeps errors.Is(err, ErrInsufficientCredits) working.
func (e *InsufficientCreditsError) Unwrap() error { return ErrInsufficientCredits }
