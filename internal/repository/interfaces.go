package repository

import (
	"context"

	"ecom-studio/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts a pgx pool or transaction so repositories can run on either.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository defines user account persistence.
type UserRepository interface {
	// CreateUser inserts a new user. Returns models.ErrUserAlreadyExists or
	// models.ErrEmailAlreadyExists on unique constraint violations.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByUsername returns models.ErrUserNotFound if the user does not exist.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetUserByEmail returns models.ErrUserNotFound if the user does not exist.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID returns models.ErrUserNotFound if the user does not exist.
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// ListUsersWithBalances returns users joined with their credit balances,
	// newest first. Used by the admin console.
	ListUsersWithBalances(ctx context.Context, limit, offset int) ([]models.UserWithBalance, error)
}

// ProfileRepository manages the per-user credits balance.
type ProfileRepository interface {
	// CreateProfile inserts a zero-balance profile for a new user.
	CreateProfile(ctx context.Context, userID uuid.UUID) error

	// GetCredits returns the current balance. Missing profiles read as zero.
	GetCredits(ctx context.Context, userID uuid.UUID) (int, error)

	// DeductCredits atomically subtracts cost if the balance covers it.
	// Returns false (and no error) when the balance was insufficient.
	DeductCredits(ctx context.Context, userID uuid.UUID, cost int) (bool, error)

	// AddCredits increases the balance by amount (amount may be negative for
	// admin corrections; the balance is still kept non-negative).
	AddCredits(ctx context.Context, userID uuid.UUID, amount int) error
}

// TransactionRepository appends and lists credit ledger history rows.
type TransactionRepository interface {
	Insert(ctx context.Context, tx *models.Transaction) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

// AdminSettingsRepository reads and writes admin-configured key/value settings.
type AdminSettingsRepository interface {
	// Get returns models.ErrSettingNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// UserFileRepository persists gallery asset records.
type UserFileRepository interface {
	Insert(ctx context.Context, file *models.UserFile) error
	GetByID(ctx context.Context, userID, fileID uuid.UUID) (*models.UserFile, error)
	// ListByUser returns all files matching the filter (sorting and paging
	// are applied by the service layer, mirroring the client-side behavior).
	ListByUser(ctx context.Context, userID uuid.UUID, folder, fileType string, favoritesOnly bool) ([]models.UserFile, error)
	SetFavorite(ctx context.Context, userID, fileID uuid.UUID, favorite bool) error
	SetViewed(ctx context.Context, userID, fileID uuid.UUID, viewed bool) error
}

// NotificationRepository persists user notifications.
type NotificationRepository interface {
	Insert(ctx context.Context, n *models.Notification) error
	// Broadcast inserts the message for every registered user.
	Broadcast(ctx context.Context, message string) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}

// BillingAddressRepository persists the billing address edited in user settings.
type BillingAddressRepository interface {
	// Get returns models.ErrNotFound when no address is stored yet.
	Get(ctx context.Context, userID uuid.UUID) (*models.BillingAddress, error)
	Upsert(ctx context.Context, addr *models.BillingAddress) error
}

// TokenRepository stores issued token metadata (Redis-backed).
type TokenRepository interface {
	SetToken(ctx context.Context, userID uuid.UUID, td *models.TokenDetails) error
	// GetUserIDByAccessUUID returns models.ErrTokenNotFound for unknown/expired UUIDs.
	GetUserIDByAccessUUID(ctx context.Context, accessUUID string) (uuid.UUID, error)
	GetUserIDByRefreshUUID(ctx context.Context, refreshUUID string) (uuid.UUID, error)
	DeleteTokens(ctx context.Context, userID uuid.UUID, accessUUID, refreshUUID string) (int64, error)
}
