// Package testutil provides shared test helpers for config fixtures and mock databases.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// SetupTestConfig writes a minimal config file for testing and returns its path.
func SetupTestConfig(t *testing.T, tmpDir string) string {
	t.Helper()

	configContent := `server:
  port: 18080
database:
  host: localhost
  port: 3306
  database: notex_test
  username: notex
auth:
  mode: disabled
  fixed_owner_id: 00000000-0000-0000-0000-000000000000
`

	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configContent), 0644))
	return cfgPath
}

// SetupTestConfigWithAuth writes a config file with enforced auth and a test
// JWT secret, for tests that exercise token verification.
func SetupTestConfigWithAuth(t *testing.T, tmpDir string) string {
	t.Helper()

	configContent := fmt.Sprintf(`server:
  port: 18080
database:
  host: localhost
  port: 3306
  database: notex_test
  username: notex
auth:
  mode: enforced
  jwt_secret: %s
`, TestJWTSecret)

	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configContent), 0644))
	return cfgPath
}

// TestJWTSecret is the signing secret used by auth fixtures.
const TestJWTSecret = "test-secret-not-for-production"

// NewMockDB returns a sqlx handle backed by sqlmock. Expectations are
// matched in order unless ordered is false, which concurrent fan-out tests
// need. The connection is closed when the test finishes.
func NewMockDB(t *testing.T, ordered bool) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	mock.MatchExpectationsInOrder(ordered)

	return sqlx.NewDb(db, "mysql"), mock
}
