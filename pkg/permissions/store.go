package permissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrBuiltInRole is returned when a mutation targets a built-in role.
var ErrBuiltInRole = errors.New("built-in roles cannot be deleted")

// ErrInvalidOverwrite is returned when an overwrite does not target
// exactly one of a role or a user.
var ErrInvalidOverwrite = errors.New("overwrite must target exactly one of role or user")

// SQLStore persists the authorization model in PostgreSQL and implements
// the Store read interface the resolver consumes. Reads go through the
// reader handle so they can be pointed at a replica; writes always use
// the primary.
type SQLStore struct {
	db     *sql.DB
	reader *sql.DB
}

// NewSQLStore creates a store that reads and writes through db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, reader: db}
}

// WithReader returns a copy of the store whose read queries use reader.
func (s *SQLStore) WithReader(reader *sql.DB) *SQLStore {
	return &SQLStore{db: s.db, reader: reader}
}

// ServerOwner implements Store. Unknown servers yield "".
func (s *SQLStore) ServerOwner(ctx context.Context, serverID string) (string, error) {
	var owner string
	err := s.reader.QueryRowContext(ctx,
		`SELECT owner_id FROM servers WHERE id = $1`, serverID,
	).Scan(&owner)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query server owner: %w", err)
	}
	return owner, nil
}

// MemberRoles implements Store. Non-members and members without roles
// yield a nil slice.
func (s *SQLStore) MemberRoles(ctx context.Context, serverID, userID string) ([]Role, error) {
	rows, err := s.reader.QueryContext(ctx, `
		SELECT r.id, r.server_id, r.name, r.color, r.position, r.permissions, r.is_built_in, r.created_at
		FROM roles r
		JOIN member_roles mr ON mr.role_id = r.id
		WHERE mr.server_id = $1 AND mr.user_id = $2
		ORDER BY r.position DESC`,
		serverID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query member roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ChannelServer implements Store. Unknown channels yield "".
func (s *SQLStore) ChannelServer(ctx context.Context, channelID string) (string, error) {
	var serverID string
	err := s.reader.QueryRowContext(ctx,
		`SELECT server_id FROM channels WHERE id = $1`, channelID,
	).Scan(&serverID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query channel server: %w", err)
	}
	return serverID, nil
}

// ChannelOverwrites implements Store.
func (s *SQLStore) ChannelOverwrites(ctx context.Context, channelID string) ([]Overwrite, error) {
	rows, err := s.reader.QueryContext(ctx, `
		SELECT id, channel_id, COALESCE(role_id, ''), COALESCE(user_id, ''), allow, deny
		FROM channel_overwrites
		WHERE channel_id = $1`,
		channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("query channel overwrites: %w", err)
	}
	defer rows.Close()

	var overwrites []Overwrite
	for rows.Next() {
		var ow Overwrite
		var allow, deny int64
		if err := rows.Scan(&ow.ID, &ow.ChannelID, &ow.RoleID, &ow.UserID, &allow, &deny); err != nil {
			return nil, fmt.Errorf("scan overwrite: %w", err)
		}
		ow.Allow = PermissionSet(allow)
		ow.Deny = PermissionSet(deny)
		overwrites = append(overwrites, ow)
	}
	return overwrites, rows.Err()
}

// CreateServer inserts the server, its owner membership, and the two
// built-in roles in one transaction. The owner is also assigned the Admin
// role, though ownership alone already grants full permissions.
func (s *SQLStore) CreateServer(ctx context.Context, name, ownerID string) (*Server, error) {
	server := &Server{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create server: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO servers (id, name, owner_id, created_at) VALUES ($1, $2, $3, $4)`,
		server.ID, server.Name, server.OwnerID, server.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert server: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO members (server_id, user_id, joined_at) VALUES ($1, $2, $3)`,
		server.ID, ownerID, server.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}

	adminRoleID := uuid.NewString()
	for _, r := range []struct {
		id    string
		name  string
		pos   int
		perms PermissionSet
	}{
		{adminRoleID, RoleAdmin, 1, PermAdministrator},
		{uuid.NewString(), RoleMember, 0, DefaultMemberPermissions},
	} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO roles (id, server_id, name, position, permissions, is_built_in, created_at)
			VALUES ($1, $2, $3, $4, $5, TRUE, $6)`,
			r.id, server.ID, r.name, r.pos, int64(r.perms), server.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("insert built-in role %s: %w", r.name, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO member_roles (server_id, user_id, role_id) VALUES ($1, $2, $3)`,
		server.ID, ownerID, adminRoleID,
	); err != nil {
		return nil, fmt.Errorf("assign admin role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create server: %w", err)
	}
	return server, nil
}

// CreateChannel inserts a channel into a server.
func (s *SQLStore) CreateChannel(ctx context.Context, serverID, name string, chType ChannelType) (*Channel, error) {
	if chType == "" {
		chType = ChannelText
	}
	ch := &Channel{
		ID:        uuid.NewString(),
		ServerID:  serverID,
		Name:      name,
		Type:      chType,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (id, server_id, name, channel_type, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ch.ID, ch.ServerID, ch.Name, string(ch.Type), ch.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	return ch, nil
}

// ServerChannels lists a server's channels in position order.
func (s *SQLStore) ServerChannels(ctx context.Context, serverID string) ([]Channel, error) {
	rows, err := s.reader.QueryContext(ctx, `
		SELECT id, server_id, COALESCE(category_id, ''), name, channel_type, position, created_at
		FROM channels
		WHERE server_id = $1
		ORDER BY position, created_at`,
		serverID,
	)
	if err != nil {
		return nil, fmt.Errorf("query server channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var ch Channel
		var chType string
		if err := rows.Scan(&ch.ID, &ch.ServerID, &ch.CategoryID, &ch.Name, &chType, &ch.Position, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		ch.Type = ChannelType(chType)
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// AddMember inserts a membership and assigns the built-in Member role.
func (s *SQLStore) AddMember(ctx context.Context, serverID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add member: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO members (server_id, user_id, joined_at) VALUES ($1, $2, $3)`,
		serverID, userID, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("insert member: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO member_roles (server_id, user_id, role_id)
		SELECT $1, $2, id FROM roles WHERE server_id = $1 AND name = $3`,
		serverID, userID, RoleMember,
	); err != nil {
		return fmt.Errorf("assign member role: %w", err)
	}
	return tx.Commit()
}

// CreateRole inserts a custom role.
func (s *SQLStore) CreateRole(ctx context.Context, serverID, name string, perms PermissionSet) (*Role, error) {
	role := &Role{
		ID:          uuid.NewString(),
		ServerID:    serverID,
		Name:        name,
		Permissions: perms,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roles (id, server_id, name, permissions, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		role.ID, role.ServerID, role.Name, int64(role.Permissions), role.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert role: %w", err)
	}
	return role, nil
}

// DeleteRole removes a custom role. Built-in roles are refused.
func (s *SQLStore) DeleteRole(ctx context.Context, roleID string) error {
	var builtIn bool
	err := s.db.QueryRowContext(ctx,
		`SELECT is_built_in FROM roles WHERE id = $1`, roleID,
	).Scan(&builtIn)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("query role: %w", err)
	}
	if builtIn {
		return ErrBuiltInRole
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, roleID); err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	return nil
}

// AssignRole adds a role to a member. Re-assignment is a no-op.
func (s *SQLStore) AssignRole(ctx context.Context, serverID, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO member_roles (server_id, user_id, role_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`,
		serverID, userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

// UnassignRole removes a role from a member.
func (s *SQLStore) UnassignRole(ctx context.Context, serverID, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM member_roles WHERE server_id = $1 AND user_id = $2 AND role_id = $3`,
		serverID, userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("unassign role: %w", err)
	}
	return nil
}

// UpsertOverwrite creates or replaces the overwrite for the target on the
// channel. The overwrite must target exactly one of a role or a user.
func (s *SQLStore) UpsertOverwrite(ctx context.Context, ow Overwrite) (*Overwrite, error) {
	if !ow.Valid() {
		return nil, ErrInvalidOverwrite
	}
	if ow.ID == "" {
		ow.ID = uuid.NewString()
	}

	roleID := sql.NullString{String: ow.RoleID, Valid: ow.RoleID != ""}
	userID := sql.NullString{String: ow.UserID, Valid: ow.UserID != ""}

	var query string
	if roleID.Valid {
		query = `
			INSERT INTO channel_overwrites (id, channel_id, role_id, user_id, allow, deny)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (channel_id, role_id)
			DO UPDATE SET allow = EXCLUDED.allow, deny = EXCLUDED.deny
			RETURNING id`
	} else {
		query = `
			INSERT INTO channel_overwrites (id, channel_id, role_id, user_id, allow, deny)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (channel_id, user_id)
			DO UPDATE SET allow = EXCLUDED.allow, deny = EXCLUDED.deny
			RETURNING id`
	}
	// On conflict the row keeps its original id; scan it back so callers
	// always see the stored identity.
	if err := s.db.QueryRowContext(ctx, query,
		ow.ID, ow.ChannelID, roleID, userID, int64(ow.Allow), int64(ow.Deny),
	).Scan(&ow.ID); err != nil {
		return nil, fmt.Errorf("upsert overwrite: %w", err)
	}
	return &ow, nil
}

// DeleteOverwrite removes an overwrite by ID.
func (s *SQLStore) DeleteOverwrite(ctx context.Context, overwriteID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM channel_overwrites WHERE id = $1`, overwriteID,
	)
	if err != nil {
		return fmt.Errorf("delete overwrite: %w", err)
	}
	return nil
}

// MemberTimeout returns a member's active timeout, or nil when the
// member is unknown or not timed out.
func (s *SQLStore) MemberTimeout(ctx context.Context, serverID, userID string) (*time.Time, error) {
	var until sql.NullTime
	err := s.reader.QueryRowContext(ctx,
		`SELECT timeout_until FROM members WHERE server_id = $1 AND user_id = $2`,
		serverID, userID,
	).Scan(&until)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query member timeout: %w", err)
	}
	if !until.Valid {
		return nil, nil
	}
	return &until.Time, nil
}

// SetMemberTimeout sets or clears a member's timeout.
func (s *SQLStore) SetMemberTimeout(ctx context.Context, serverID, userID string, until *time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE members SET timeout_until = $1 WHERE server_id = $2 AND user_id = $3`,
		until, serverID, userID,
	)
	if err != nil {
		return fmt.Errorf("set member timeout: %w", err)
	}
	return nil
}

// SweepExpiredTimeouts clears timeouts that have elapsed and returns the
// number of members affected. The janitor runs this periodically.
func (s *SQLStore) SweepExpiredTimeouts(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE members SET timeout_until = NULL WHERE timeout_until IS NOT NULL AND timeout_until <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("sweep expired timeouts: %w", err)
	}
	return res.RowsAffected()
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRole(row rowScanner) (Role, error) {
	var role Role
	var perms int64
	if err := row.Scan(&role.ID, &role.ServerID, &role.Name, &role.Color, &role.Position, &perms, &role.IsBuiltIn, &role.CreatedAt); err != nil {
		return Role{}, fmt.Errorf("scan role: %w", err)
	}
	role.Permissions = PermissionSet(perms)
	return role, nil
}
