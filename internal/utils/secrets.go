package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecretsDir can be overridden via SECRETS_DIR for local development runs
// outside of Docker.
const defaultSecretsDir = "/run/secrets"

// ReadSecret читает секрет из файла (Docker Secrets или локальная папка).
func ReadSecret(name string) (string, error) {
	dir := os.Getenv("SECRETS_DIR")
	if dir == "" {
		dir = defaultSecretsDir
	}
	path := filepath.Join(dir, name)

	raw, err := os.ReadFile(path)
	if err != nil {
		// Fallback на env var не делаем: источник секретов должен быть один
		return "", fmt.Errorf("failed to read secret file %s: %w", path, err)
	}
	value := strings.TrimSpace(string(raw))
	if value == "" {
		return "", fmt.Errorf("secret file %s is empty", path)
	}
	return value, nil
}
