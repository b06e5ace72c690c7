package dbclient

import (
	"fmt"

	"github.com/go-sql-driver/mysql"

	"fixtures/internal/domain"
)

// buildMySQLDSN constructs a MySQL DSN from the database settings.
func buildMySQLDSN(s domain.DatabaseSettings) string {
	cfg := mysql.NewConfig()
	cfg.User = s.Username
	cfg.Passwd = s.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", s.Host, s.EffectivePort())
	cfg.DBName = s.Schema
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	if s.SSLMode == "require" {
		cfg.TLSConfig = "true"
	}
	return cfg.FormatDSN()
}
