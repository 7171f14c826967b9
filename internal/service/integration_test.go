package service_test // Используем _test пакет для изоляции

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ecom-studio/internal/config"
	"ecom-studio/internal/database"
	"ecom-studio/internal/models"
	"ecom-studio/internal/repository"
	"ecom-studio/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	// Докер клиент для проверки доступности
	"github.com/docker/docker/client"
)

// IntegrationTestSuite содержит состояние для наших интеграционных тестов
type IntegrationTestSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	rdContainer *tcredis.RedisContainer
	pgPool      *pgxpool.Pool
	redisClient *redis.Client
	config      *config.Config
	logger      *zap.Logger

	userRepo      repository.UserRepository
	profileRepo   repository.ProfileRepository
	txRepo        repository.TransactionRepository
	settingsRepo  repository.AdminSettingsRepository
	fileRepo      repository.UserFileRepository
	notifRepo     repository.NotificationRepository
	billingRepo   repository.BillingAddressRepository
	tokenRepo     repository.TokenRepository
	authService   service.AuthService
	creditService service.CreditService
	notifService  service.NotificationService
}

// SetupSuite выполняется один раз перед всеми тестами в наборе
func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error

	s.logger, err = zap.NewDevelopment()
	require.NoError(s.T(), err, "Failed to create logger for tests")
	s.logger.Info("Setting up integration test suite...")

	// Запускаем контейнер PostgreSQL
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start postgres container")
	s.logger.Info("PostgreSQL container started")

	pgConnStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get postgres connection string")

	s.pgPool, err = pgxpool.New(s.ctx, pgConnStr)
	require.NoError(s.T(), err, "Failed to connect to test postgres")
	s.logger.Info("Connected to test PostgreSQL")

	// Применяем встроенные миграции
	err = database.RunMigrations(pgConnStr)
	require.NoError(s.T(), err, "Failed to run migrations")
	s.logger.Info("Database migrations applied")

	// Запускаем контейнер Redis
	s.rdContainer, err = tcredis.Run(s.ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(1*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start redis container")
	s.logger.Info("Redis container started")

	redisHost, err := s.rdContainer.Host(s.ctx)
	require.NoError(s.T(), err)
	redisPort, err := s.rdContainer.MappedPort(s.ctx, "6379/tcp")
	require.NoError(s.T(), err)
	redisAddr := fmt.Sprintf("%s:%s", redisHost, redisPort.Port())

	s.redisClient = redis.NewClient(&redis.Options{Addr: redisAddr})
	_, err = s.redisClient.Ping(s.ctx).Result()
	require.NoError(s.T(), err, "Failed to connect to test redis")
	s.logger.Info("Connected to test Redis")

	s.config = &config.Config{
		Env:             "test",
		LogLevel:        "debug",
		RedisAddr:       redisAddr,
		AccessTokenTTL:  5 * time.Minute,
		RefreshTokenTTL: 10 * time.Minute,
		JWTSecret:       "test-jwt-secret",
		PasswordPepper:  "test-pepper",
	}

	// Инициализируем репозитории и сервисы поверх тестовых контейнеров
	s.userRepo = repository.NewPgUserRepository(s.pgPool, s.logger)
	s.profileRepo = repository.NewPgProfileRepository(s.pgPool, s.logger)
	s.txRepo = repository.NewPgTransactionRepository(s.pgPool, s.logger)
	s.settingsRepo = repository.NewPgAdminSettingsRepository(s.pgPool, s.logger)
	s.fileRepo = repository.NewPgUserFileRepository(s.pgPool, s.logger)
	s.notifRepo = repository.NewPgNotificationRepository(s.pgPool, s.logger)
	s.billingRepo = repository.NewPgBillingAddressRepository(s.pgPool, s.logger)
	s.tokenRepo = repository.NewRedisTokenRepository(s.redisClient, s.logger)

	s.authService = service.NewAuthService(s.userRepo, s.profileRepo, s.tokenRepo, s.config, s.logger)
	s.creditService = service.NewCreditService(s.profileRepo, s.txRepo, s.settingsRepo, s.logger)
	s.notifService = service.NewNotificationService(s.notifRepo, s.logger)

	s.logger.Info("Test suite setup complete.")
}

// TearDownSuite выполняется один раз после всех тестов в наборе
func (s *IntegrationTestSuite) TearDownSuite() {
	s.logger.Info("Tearing down integration test suite...")
	if s.pgPool != nil {
		s.pgPool.Close()
	}
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Error("Failed to terminate postgres container", zap.Error(err))
		}
	}
	if s.rdContainer != nil {
		if err := s.rdContainer.Terminate(s.ctx); err != nil {
			s.logger.Error("Failed to terminate redis container", zap.Error(err))
		}
	}
	s.logger.Info("Test suite teardown complete.")
}

// Перед каждым тестом очищаем Redis и таблицы БД
func (s *IntegrationTestSuite) SetupTest() {
	err := s.redisClient.FlushDB(s.ctx).Err()
	require.NoError(s.T(), err, "Failed to flush Redis DB")

	// ОСТОРОЖНО: НЕ запускать на production БД!
	_, err = s.pgPool.Exec(s.ctx, "TRUNCATE TABLE users RESTART IDENTITY CASCADE")
	require.NoError(s.T(), err, "Failed to truncate users table")
	_, err = s.pgPool.Exec(s.ctx, "TRUNCATE TABLE admin_settings")
	require.NoError(s.T(), err, "Failed to truncate admin_settings table")
}

// registerUser - хелпер: регистрирует пользователя и возвращает его
func (s *IntegrationTestSuite) registerUser(username, email, password string) *models.User {
	user, err := s.authService.Register(s.ctx, username, email, password)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), user)
	return user
}

// TestIntegrationTestSuite запускает набор тестов
func TestIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	// Проверяем доступность Docker перед запуском
	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		t.Fatalf("Docker client init error: %v. Ensure Docker is running and accessible.", err)
	}
	if _, err := cli.Ping(context.Background()); err != nil {
		t.Fatalf("Docker daemon is not running or accessible: %v", err)
	}
	cli.Close()

	suite.Run(t, new(IntegrationTestSuite))
}

// --- Auth ---

func (s *IntegrationTestSuite) TestRegisterAndLogin_Success() {
	t := s.T()
	ctx := context.Background()
	username := "testuser1"
	password := "password123"
	email := "testuser1@example.com"

	// 1. Регистрация
	registeredUser := s.registerUser(username, email, password)
	require.Equal(t, username, registeredUser.Username)
	require.Equal(t, email, registeredUser.Email)
	require.NotEqual(t, uuid.Nil, registeredUser.ID, "User ID should be assigned")
	require.Empty(t, registeredUser.PasswordHash, "Password hash should not be returned")

	// Новому пользователю создается профиль с нулевым балансом
	balance, err := s.creditService.GetBalance(ctx, registeredUser.ID)
	require.NoError(t, err)
	require.Equal(t, 0, balance, "New user should start with zero credits")

	// Повторная регистрация с тем же username - ошибка
	_, err = s.authService.Register(ctx, username, "another@example.com", "anotherpassword")
	require.Error(t, err)
	require.True(t, errors.Is(err, models.ErrUserAlreadyExists), "Error should be ErrUserAlreadyExists")

	// Повторная регистрация с тем же email - ошибка
	_, err = s.authService.Register(ctx, "anotheruser", email, "anotherpassword")
	require.Error(t, err)
	require.True(t, errors.Is(err, models.ErrEmailAlreadyExists), "Error should be ErrEmailAlreadyExists")

	// 2. Логин
	tokens, err := s.authService.Login(ctx, username, password)
	require.NoError(t, err, "Login should succeed")
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)
	require.NotEmpty(t, tokens.AccessUUID)
	require.NotEmpty(t, tokens.RefreshUUID)

	// Проверяем наличие токенов в Redis
	accessUserID, err := s.tokenRepo.GetUserIDByAccessUUID(ctx, tokens.AccessUUID)
	require.NoError(t, err, "Access token UUID should exist in Redis")
	require.Equal(t, registeredUser.ID, accessUserID)

	refreshUserID, err := s.tokenRepo.GetUserIDByRefreshUUID(ctx, tokens.RefreshUUID)
	require.NoError(t, err, "Refresh token UUID should exist in Redis")
	require.Equal(t, registeredUser.ID, refreshUserID)

	// 3. Логин с неверным паролем
	_, err = s.authService.Login(ctx, username, "wrongpassword")
	require.Error(t, err)
	require.True(t, errors.Is(err, models.ErrInvalidCredentials), "Error should be ErrInvalidCredentials")

	// 4. Логин несуществующего пользователя
	_, err = s.authService.Login(ctx, "nonexistentuser", "password")
	require.Error(t, err)
	require.True(t, errors.Is(err, models.ErrInvalidCredentials), "Error should be ErrInvalidCredentials")
}

func (s *IntegrationTestSuite) TestRegister_InvalidEmailFormat() {
	t := s.T()
	ctx := context.Background()

	_, err := s.authService.Register(ctx, "invalidemailuser", "not-an-email", "password123")
	require.Error(t, err, "Register with invalid email format should fail")
	require.True(t, errors.Is(err, models.ErrInvalidCredentials), "Error should indicate invalid input format")
}

func (s *IntegrationTestSuite) TestRefresh_Success() {
	t := s.T()
	ctx := context.Background()

	registeredUser := s.registerUser("refreshuser", "refresh@example.com", "refreshpass1")
	tokens, err := s.authService.Login(ctx, "refreshuser", "refreshpass1")
	require.NoError(t, err)

	oldRefreshUUID := tokens.RefreshUUID

	// Небольшая пауза, чтобы время создания токенов точно отличалось
	time.Sleep(10 * time.Millisecond)

	newTokens, err := s.authService.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err, "Refresh should succeed")
	require.NotEqual(t, tokens.AccessToken, newTokens.AccessToken)
	require.NotEqual(t, tokens.RefreshToken, newTokens.RefreshToken)
	require.NotEqual(t, tokens.RefreshUUID, newTokens.RefreshUUID)

	// Старый Refresh UUID должен быть удален
	_, err = s.tokenRepo.GetUserIDByRefreshUUID(ctx, oldRefreshUUID)
	require.Error(t, err, "Old refresh token UUID should be deleted from Redis")
	require.True(t, errors.Is(err, models.ErrTokenNotFound) || errors.Is(err, redis.Nil))

	// Новая пара должна существовать
	accessUserID, err := s.tokenRepo.GetUserIDByAccessUUID(ctx, newTokens.AccessUUID)
	require.NoError(t, err)
	require.Equal(t, registeredUser.ID, accessUserID)

	refreshUserID, err := s.tokenRepo.GetUserIDByRefreshUUID(ctx, newTokens.RefreshUUID)
	require.NoError(t, err)
	require.Equal(t, registeredUser.ID, refreshUserID)
}

func (s *IntegrationTestSuite) TestRefresh_InvalidToken() {
	t := s.T()
	ctx := context.Background()

	_, err := s.authService.Refresh(ctx, "this-is-not-a-valid-jwt-token")
	require.Error(t, err, "Refresh with invalid token string should fail")
	require.False(t, errors.Is(err, models.ErrTokenNotFound))
	require.True(t, errors.Is(err, models.ErrTokenMalformed), "Error should be ErrTokenMalformed")
}

func (s *IntegrationTestSuite) TestRefresh_TokenNotFoundInRedis() {
	t := s.T()
	ctx := context.Background()

	registeredUser := s.registerUser("refreshlost", "refreshlost@example.com", "refreshpass1")
	tokens, err := s.authService.Login(ctx, "refreshlost", "refreshpass1")
	require.NoError(t, err)

	// Удаляем Refresh UUID из Redis вручную
	_, err = s.tokenRepo.DeleteTokens(ctx, registeredUser.ID, "", tokens.RefreshUUID)
	require.NoError(t, err, "Failed to manually delete refresh UUID from Redis")

	_, err = s.authService.Refresh(ctx, tokens.RefreshToken)
	require.Error(t, err, "Refresh should fail if refresh UUID is not in Redis")
	require.True(t, errors.Is(err, models.ErrTokenNotFound), "Error should be ErrTokenNotFound")
}

func (s *IntegrationTestSuite) TestLogout_RevokesTokens() {
	t := s.T()
	ctx := context.Background()

	registeredUser := s.registerUser("logoutuser", "logout@example.com", "logoutpass1")
	tokens, err := s.authService.Login(ctx, "logoutuser", "logoutpass1")
	require.NoError(t, err)

	accessTokenToVerify := tokens.AccessToken

	// До выхода access токен валиден
	claims, err := s.authService.VerifyAccessToken(ctx, accessTokenToVerify)
	require.NoError(t, err)
	require.Equal(t, registeredUser.ID, claims.UserID)

	err = s.authService.Logout(ctx, registeredUser.ID, tokens.AccessUUID, tokens.RefreshUUID)
	require.NoError(t, err, "Logout should succeed")

	// Токены удалены из Redis
	_, err = s.tokenRepo.GetUserIDByAccessUUID(ctx, tokens.AccessUUID)
	require.Error(t, err, "Access token should be deleted after logout")
	_, err = s.tokenRepo.GetUserIDByRefreshUUID(ctx, tokens.RefreshUUID)
	require.Error(t, err, "Refresh token should be deleted after logout")

	// Отозванный access токен больше не проходит проверку
	_, err = s.authService.VerifyAccessToken(ctx, accessTokenToVerify)
	require.Error(t, err, "VerifyAccessToken should fail for revoked token")
	require.True(t, errors.Is(err, models.ErrTokenInvalid), "Error should be ErrTokenInvalid for revoked token")
}

func (s *IntegrationTestSuite) TestLogout_NotFound() {
	t := s.T()
	ctx := context.Background()

	// Выход с несуществующими UUID идемпотентен
	err := s.authService.Logout(ctx, uuid.New(), uuid.NewString(), uuid.NewString())
	require.NoError(t, err, "Logout with non-existent UUIDs should not return an error")
}

func (s *IntegrationTestSuite) TestVerifyAccessToken_Expired() {
	t := s.T()
	ctx := context.Background()

	originalTTL := s.config.AccessTokenTTL
	s.config.AccessTokenTTL = 1 * time.Millisecond
	defer func() { s.config.AccessTokenTTL = originalTTL }()

	s.registerUser("verifyexpired", "verify_expired@example.com", "verifypass1")
	tokens, err := s.authService.Login(ctx, "verifyexpired", "verifypass1")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = s.authService.VerifyAccessToken(ctx, tokens.AccessToken)
	require.Error(t, err, "VerifyAccessToken should fail for expired token")
	require.True(t, errors.Is(err, models.ErrTokenExpired), "Error should be ErrTokenExpired")
}

func (s *IntegrationTestSuite) TestVerifyAccessToken_Malformed() {
	t := s.T()
	ctx := context.Background()

	_, err := s.authService.VerifyAccessToken(ctx, "this.is.not.a.valid.jwt.token")
	require.Error(t, err, "VerifyAccessToken should fail for malformed token")
	require.True(t, errors.Is(err, models.ErrTokenMalformed) || errors.Is(err, models.ErrTokenInvalid))
}

// --- Credits ---

func (s *IntegrationTestSuite) TestCredits_DeductForGeneration() {
	t := s.T()
	ctx := context.Background()

	user := s.registerUser("credituser", "credit@example.com", "creditpass1")

	// Пополняем баланс через админскую корректировку
	err := s.creditService.AdjustCredits(ctx, user.ID, 500)
	require.NoError(t, err)

	balance, err := s.creditService.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 500, balance)

	// Списание за генерацию: дефолтная цена 100 за изображение
	cost, err := s.creditService.DeductForGeneration(ctx, user.ID, 3)
	require.NoError(t, err)
	require.Equal(t, 300, cost)

	balance, err = s.creditService.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 200, balance)

	// Недостаточно средств: баланс не меняется
	_, err = s.creditService.DeductForGeneration(ctx, user.ID, 3)
	require.Error(t, err)
	require.True(t, errors.Is(err, models.ErrInsufficientCredits), "Error should be ErrInsufficientCredits")

	balance, err = s.creditService.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 200, balance, "Balance must be unchanged after a failed deduction")

	// История содержит обе успешные операции, новые сверху
	history, err := s.creditService.ListTransactions(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, -300, history[0].Amount)
	require.Equal(t, models.TransactionVideoGeneration, history[0].TransactionType)
	require.Equal(t, 500, history[1].Amount)
	require.Equal(t, models.TransactionAdminAdjustment, history[1].TransactionType)
}

func (s *IntegrationTestSuite) TestCredits_PricingSettings() {
	t := s.T()
	ctx := context.Background()

	user := s.registerUser("pricinguser", "pricing@example.com", "pricingpass1")

	// Дефолтная цена до настройки админом
	price, err := s.creditService.EffectivePricePerImage(ctx)
	require.NoError(t, err)
	require.Equal(t, models.DefaultVideoPricePerImage, price)

	// Админ задает цену и скидку
	err = s.creditService.SetPricing(ctx, models.PricingSettings{BasePrice: 80, DiscountRate: 25})
	require.NoError(t, err)

	price, err = s.creditService.EffectivePricePerImage(ctx)
	require.NoError(t, err)
	require.Equal(t, 60, price, "Effective price should be base minus discount")

	// Списание идет по новой цене
	require.NoError(t, s.creditService.AdjustCredits(ctx, user.ID, 100))
	cost, err := s.creditService.DeductForGeneration(ctx, user.ID, 1)
	require.NoError(t, err)
	require.Equal(t, 60, cost)
}

// --- Gallery files ---

func (s *IntegrationTestSuite) TestUserFiles_RoundTrip() {
	t := s.T()
	ctx := context.Background()

	user := s.registerUser("fileuser", "files@example.com", "filepass1")

	file := &models.UserFile{
		UserID:   user.ID,
		FilePath: "http://localhost:8080/static/uploads/product.jpg",
		FileType: models.FileTypeImage,
		Folder:   models.FolderLibrary,
		FileSize: 2048,
	}
	require.NoError(t, s.fileRepo.Insert(ctx, file))
	require.NotEqual(t, uuid.Nil, file.ID, "Insert should populate the generated ID")

	got, err := s.fileRepo.GetByID(ctx, user.ID, file.ID)
	require.NoError(t, err)
	require.Equal(t, file.FilePath, got.FilePath)
	require.False(t, got.IsFavorite)

	require.NoError(t, s.fileRepo.SetFavorite(ctx, user.ID, file.ID, true))
	require.NoError(t, s.fileRepo.SetViewed(ctx, user.ID, file.ID, true))

	files, err := s.fileRepo.ListByUser(ctx, user.ID, models.FolderLibrary, models.FileTypeImage, true)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.True(t, files[0].IsFavorite)
	require.True(t, files[0].IsViewed)

	// Чужой пользователь файла не видит
	_, err = s.fileRepo.GetByID(ctx, uuid.New(), file.ID)
	require.Error(t, err)
	require.True(t, errors.Is(err, models.ErrFileNotFound), "Error should be ErrFileNotFound")
}

// --- Notifications ---

func (s *IntegrationTestSuite) TestNotifications_BroadcastAndRead() {
	t := s.T()
	ctx := context.Background()

	alice := s.registerUser("alice", "alice@example.com", "alicepass1")
	bob := s.registerUser("bob", "bob@example.com", "bobpass1")

	// Личное уведомление + рассылка всем
	require.NoError(t, s.notifService.Notify(ctx, alice.ID, "Your video SKU1_00001 is ready (took 01:30)"))

	count, err := s.notifService.Broadcast(ctx, "Scheduled maintenance tonight")
	require.NoError(t, err)
	require.Equal(t, int64(2), count, "Broadcast should reach every registered user")

	unread, err := s.notifService.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 2, unread)

	unread, err = s.notifService.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	require.Equal(t, 1, unread)

	// Отмечаем одно уведомление прочитанным
	list, err := s.notifService.List(ctx, alice.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, s.notifService.MarkRead(ctx, alice.ID, list[0].ID))
	unread, err = s.notifService.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 1, unread)

	// И все остальные разом
	require.NoError(t, s.notifService.MarkAllRead(ctx, alice.ID))
	unread, err = s.notifService.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 0, unread)

	// Чужое уведомление нельзя пометить прочитанным
	err = s.notifService.MarkRead(ctx, bob.ID, list[0].ID)
	require.Error(t, err)
}

// --- Billing address ---

func (s *IntegrationTestSuite) TestBillingAddress_Upsert() {
	t := s.T()
	ctx := context.Background()

	user := s.registerUser("billinguser", "billing@example.com", "billingpass1")

	// До первого сохранения адреса нет
	_, err := s.billingRepo.Get(ctx, user.ID)
	require.Error(t, err)
	require.True(t, errors.Is(err, models.ErrNotFound), "Error should be ErrNotFound")

	addr := &models.BillingAddress{
		UserID:     user.ID,
		FullName:   "Jamie Doe",
		Line1:      "1 Main St",
		City:       "Springfield",
		PostalCode: "12345",
		Country:    "US",
	}
	require.NoError(t, s.billingRepo.Upsert(ctx, addr))

	got, err := s.billingRepo.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Jamie Doe", got.FullName)

	// Повторное сохранение обновляет запись
	addr.City = "Shelbyville"
	require.NoError(t, s.billingRepo.Upsert(ctx, addr))

	got, err = s.billingRepo.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Shelbyville", got.City)
}
