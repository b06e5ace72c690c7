package dbclient

import (
	_ "modernc.org/sqlite"
)

// newSQLiteConnector opens the embedded database file at path.
// The file must already exist; Manager checks that before calling.
func newSQLiteConnector(path string) (*sqlConnector, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)"
	c, err := newSQLConnector("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite only supports one writer, limit to single connection to prevent SQLITE_BUSY
	c.db.SetMaxOpenConns(1)
	return c, nil
}
