package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// Open connects to MySQL and verifies the connection.  Dates are stored as
// YYYY-MM-DD strings, timestamps in UTC.
func Open(user, pass, host, port, name string) (*sqlx.DB, error) {
	c := mysql.NewConfig()
	c.User = user
	c.Passwd = pass
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%s", host, port)
	c.DBName = name
	c.ParseTime = true // DATETIME -> time.Time
	c.Loc = time.UTC
	c.MultiStatements = true // schema.sql is applied in one Exec
	c.Params = map[string]string{"charset": "utf8mb4"}
	return OpenDSN(c.FormatDSN())
}

// OpenDSN opens a pool for an explicit DSN, used by integration tests.
func OpenDSN(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
