package permissions

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the authorization schema, in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create servers table",
			SQL: `
				CREATE TABLE IF NOT EXISTS servers (
					id VARCHAR(64) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					owner_id VARCHAR(64) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_servers_owner_id ON servers(owner_id);
			`,
		},
		{
			Version:     2,
			Description: "Create channels table",
			SQL: `
				CREATE TABLE IF NOT EXISTS channels (
					id VARCHAR(64) PRIMARY KEY,
					server_id VARCHAR(64) NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
					category_id VARCHAR(64),
					name VARCHAR(255) NOT NULL,
					channel_type VARCHAR(16) NOT NULL DEFAULT 'text',
					position INT NOT NULL DEFAULT 0,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_channels_server_id ON channels(server_id);
			`,
		},
		{
			Version:     3,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id VARCHAR(64) PRIMARY KEY,
					server_id VARCHAR(64) NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					color INT NOT NULL DEFAULT 0,
					position INT NOT NULL DEFAULT 0,
					permissions BIGINT NOT NULL DEFAULT 0,
					is_built_in BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(server_id, name)
				);

				CREATE INDEX IF NOT EXISTS idx_roles_server_id ON roles(server_id);
			`,
		},
		{
			Version:     4,
			Description: "Create members and member_roles tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS members (
					server_id VARCHAR(64) NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
					user_id VARCHAR(64) NOT NULL,
					nickname VARCHAR(255),
					timeout_until TIMESTAMP,
					joined_at TIMESTAMP NOT NULL DEFAULT NOW(),
					PRIMARY KEY (server_id, user_id)
				);

				CREATE TABLE IF NOT EXISTS member_roles (
					server_id VARCHAR(64) NOT NULL,
					user_id VARCHAR(64) NOT NULL,
					role_id VARCHAR(64) NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					PRIMARY KEY (server_id, user_id, role_id),
					FOREIGN KEY (server_id, user_id) REFERENCES members(server_id, user_id) ON DELETE CASCADE
				);

				CREATE INDEX IF NOT EXISTS idx_member_roles_user ON member_roles(server_id, user_id);
				CREATE INDEX IF NOT EXISTS idx_members_timeout ON members(timeout_until);
			`,
		},
		{
			Version:     5,
			Description: "Create channel_overwrites table",
			SQL: `
				CREATE TABLE IF NOT EXISTS channel_overwrites (
					id VARCHAR(64) PRIMARY KEY,
					channel_id VARCHAR(64) NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
					role_id VARCHAR(64) REFERENCES roles(id) ON DELETE CASCADE,
					user_id VARCHAR(64),
					allow BIGINT NOT NULL DEFAULT 0,
					deny BIGINT NOT NULL DEFAULT 0,
					CHECK ((role_id IS NULL) != (user_id IS NULL)),
					UNIQUE(channel_id, role_id),
					UNIQUE(channel_id, user_id)
				);

				CREATE INDEX IF NOT EXISTS idx_overwrites_channel_id ON channel_overwrites(channel_id);
			`,
		},
	}
}

// RunMigrations applies pending migrations, tracking progress in a
// permissions_migrations table.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS permissions_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range GetMigrations() {
		var applied bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM permissions_migrations WHERE version = $1)`,
			m.Version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO permissions_migrations (version, description) VALUES ($1, $2)`,
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}
