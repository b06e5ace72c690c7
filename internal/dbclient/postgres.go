package dbclient

import (
	"fmt"

	_ "github.com/lib/pq"

	"fixtures/internal/domain"
)

// buildPostgresDSN constructs a Postgres connection string from the settings.
func buildPostgresDSN(s domain.DatabaseSettings) string {
	sslMode := s.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteConnValue(s.Host), s.EffectivePort(), quoteConnValue(s.Username),
		quoteConnValue(s.Password), quoteConnValue(s.Schema), sslMode,
	)
}

// quoteConnValue quotes a libpq keyword/value when it contains spaces or quotes.
func quoteConnValue(v string) string {
	needs := v == ""
	for _, r := range v {
		if r == ' ' || r == '\'' || r == '\\' {
			needs = true
			break
		}
	}
	if !needs {
		return v
	}
	out := []rune{'\''}
	for _, r := range v {
		if r == '\'' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(append(out, '\''))
}
