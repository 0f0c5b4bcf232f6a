package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/k6mud/internal/game/player"
)

// ProfileRepository provides player profile persistence operations.
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a ProfileRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `id, username, password_hash, location, connected, created_at`

func scanProfile(row pgx.Row) (player.Profile, error) {
	var p player.Profile
	err := row.Scan(&p.ID, &p.Username, &p.PasswordHash, &p.LocationRoomID, &p.Connected, &p.CreatedAt)
	return p, err
}

// Create inserts a new profile with a bcrypt-hashed password located in locationRoomID.
//
// Precondition: username and password must be non-empty.
// Postcondition: Returns the created Profile with ID and CreatedAt set,
// or player.ErrProfileExists if the username is taken.
func (r *ProfileRepository) Create(ctx context.Context, username, password string, locationRoomID int) (player.Profile, error) {
	hash, err := player.HashPassword(password)
	if err != nil {
		return player.Profile{}, fmt.Errorf("hashing password: %w", err)
	}

	p, err := scanProfile(r.db.QueryRow(ctx,
		`INSERT INTO player_profiles (username, password_hash, location)
		 VALUES ($1, $2, $3)
		 RETURNING `+profileColumns,
		username, hash, locationRoomID,
	))
	if err != nil {
		if isDuplicateKeyError(err) {
			return player.Profile{}, player.ErrProfileExists
		}
		return player.Profile{}, fmt.Errorf("inserting profile: %w", err)
	}
	return p, nil
}

// GetByUsername retrieves a profile by username.
//
// Postcondition: Returns the Profile or player.ErrProfileNotFound.
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (player.Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM player_profiles WHERE username = $1`,
		username,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return player.Profile{}, player.ErrProfileNotFound
		}
		return player.Profile{}, fmt.Errorf("querying profile: %w", err)
	}
	return p, nil
}

// MarkConnected atomically flips the connected flag from false to true.
//
// Postcondition: Returns nil on success, player.ErrAlreadyConnected if the flag
// was already set, or player.ErrProfileNotFound for unknown usernames.
func (r *ProfileRepository) MarkConnected(ctx context.Context, username string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE player_profiles SET connected = TRUE
		 WHERE username = $1 AND connected = FALSE`,
		username,
	)
	if err != nil {
		return fmt.Errorf("marking connected: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetByUsername(ctx, username); err != nil {
		return err
	}
	return player.ErrAlreadyConnected
}

// MarkDisconnected clears the connected flag.
//
// Postcondition: The flag is false, or player.ErrProfileNotFound is returned.
func (r *ProfileRepository) MarkDisconnected(ctx context.Context, username string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE player_profiles SET connected = FALSE WHERE username = $1`,
		username,
	)
	if err != nil {
		return fmt.Errorf("marking disconnected: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return player.ErrProfileNotFound
	}
	return nil
}

// UpdateLocation stores the player's current room.
//
// Postcondition: The location is persisted, or player.ErrProfileNotFound is returned.
func (r *ProfileRepository) UpdateLocation(ctx context.Context, username string, roomID int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE player_profiles SET location = $1 WHERE username = $2`,
		roomID, username,
	)
	if err != nil {
		return fmt.Errorf("updating location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return player.ErrProfileNotFound
	}
	return nil
}

// ConnectedInRoom returns the usernames of connected players located in roomID,
// ordered by username.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *ProfileRepository) ConnectedInRoom(ctx context.Context, roomID int) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT username FROM player_profiles
		 WHERE location = $1 AND connected = TRUE
		 ORDER BY username`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing players in room: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning players in room: %w", err)
	}
	return names, nil
}

// Connected returns the usernames of every connected player, ordered by username.
func (r *ProfileRepository) Connected(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT username FROM player_profiles WHERE connected = TRUE ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing connected players: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning connected players: %w", err)
	}
	return names, nil
}

// ResetConnections clears every connected flag. Run at startup to drop presence
// left behind by a crashed process.
//
// Postcondition: Returns the number of profiles that were reset.
func (r *ProfileRepository) ResetConnections(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE player_profiles SET connected = FALSE WHERE connected = TRUE`)
	if err != nil {
		return 0, fmt.Errorf("resetting connections: %w", err)
	}
	return tag.RowsAffected(), nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
