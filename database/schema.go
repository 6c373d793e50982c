package database

import (
	"context"
	"fmt"
	"strings"
)

// Timestamps are stored as fixed-width UTC text (see utils.FormatDateTimeForDB)
// so the same schema sorts correctly on every dialect.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS licenses (
		license_key VARCHAR(64) PRIMARY KEY,
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		plan VARCHAR(100) NOT NULL DEFAULT '',
		max_devices INT NOT NULL,
		order_id VARCHAR(100) NULL UNIQUE,
		email VARCHAR(255) NULL,
		created_at VARCHAR(50) NOT NULL,
		CHECK (max_devices > 0)
	)%s`,

	`CREATE TABLE IF NOT EXISTS activations (
		license_key VARCHAR(64) NOT NULL,
		device_id VARCHAR(255) NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		first_activated VARCHAR(50) NOT NULL,
		last_seen VARCHAR(50) NOT NULL,
		PRIMARY KEY (license_key, device_id),
		FOREIGN KEY (license_key) REFERENCES licenses(license_key)
	)%s`,

	`CREATE TABLE IF NOT EXISTS device_activity_logs (
		id %s,
		license_key VARCHAR(64) NOT NULL,
		device_id VARCHAR(255) NOT NULL,
		action VARCHAR(50) NOT NULL,
		details TEXT,
		created_at VARCHAR(50) NOT NULL,
		FOREIGN KEY (license_key) REFERENCES licenses(license_key)
	)%s`,

	`CREATE TABLE IF NOT EXISTS admins (
		id VARCHAR(50) PRIMARY KEY,
		username VARCHAR(100) NOT NULL UNIQUE,
		password VARCHAR(255) NOT NULL,
		role VARCHAR(50) NOT NULL DEFAULT 'admin',
		created_at VARCHAR(50) NOT NULL
	)%s`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		ddl := s.renderDDL(stmt)
		if _, err := s.DB.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to execute SQL: %w", err)
		}
	}
	return nil
}

func (s *Store) renderDDL(stmt string) string {
	suffix := ""
	if s.Dialect == MySQL {
		suffix = " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci"
	}

	if strings.Count(stmt, "%s") == 2 {
		return fmt.Sprintf(stmt, autoIncrementPK(s.Dialect), suffix)
	}
	return fmt.Sprintf(stmt, suffix)
}

func autoIncrementPK(dialect Dialect) string {
	switch dialect {
	case MySQL:
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	case Postgres:
		return "BIGSERIAL PRIMARY KEY"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}
