package db

import (
	"context"
	"errors"

	"ferris-bot/pkg/config"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	selectGuildQuery         = "SELECT verification_mode, verification_timeout FROM guild_config WHERE guild_id = $1;"
	upsertModeQuery          = "INSERT INTO guild_config (guild_id, verification_mode) VALUES ($1, $2) ON CONFLICT(guild_id) DO UPDATE SET verification_mode=excluded.verification_mode;"
	upsertTimeoutQuery       = "INSERT INTO guild_config (guild_id, verification_timeout) VALUES ($1, $2) ON CONFLICT(guild_id) DO UPDATE SET verification_timeout=excluded.verification_timeout;"
	insertPinWhitelistQuery  = "INSERT INTO pin_whitelist (channel_id, member_id) VALUES ($1, $2) ON CONFLICT DO NOTHING;"
	deletePinWhitelistQuery  = "DELETE FROM pin_whitelist WHERE channel_id = $1 AND member_id = $2;"
	selectPinWhitelistQuery  = "SELECT member_id FROM pin_whitelist WHERE channel_id = $1 ORDER BY member_id;"
	existsPinWhitelistQuery  = "SELECT EXISTS (SELECT 1 FROM pin_whitelist WHERE channel_id = $1 AND member_id = $2);"
	insertFeedQuery          = "INSERT INTO feeds (channel_id, name, role_id) VALUES ($1, $2, $3);"
	deleteFeedQuery          = "DELETE FROM feeds WHERE channel_id = $1 AND name = $2 RETURNING channel_id, name, role_id;"
	selectFeedsQuery         = "SELECT channel_id, name, role_id FROM feeds WHERE channel_id = $1 ORDER BY name;"
	selectFeedQuery          = "SELECT channel_id, name, role_id FROM feeds WHERE channel_id = $1 AND name = $2;"
	uniqueViolationErrorCode = "23505"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

type DB struct {
	pool *pgxpool.Pool
}

func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

// GetGuildConfig returns the stored overrides, or a zero config when the guild has none.
func (db *DB) GetGuildConfig(ctx context.Context, guildID snowflake.ID) (cfg config.Guild, err error) {
	rows, _ := db.pool.Query(ctx, selectGuildQuery, int64(guildID))
	cfg, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[config.Guild])
	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		err = nil
	}
	return
}

func (db *DB) UpdateVerificationMode(ctx context.Context, guildID snowflake.ID, mode config.VerificationMode) error {
	_, err := db.pool.Exec(ctx, upsertModeQuery, int64(guildID), int16(mode))
	return err
}

func (db *DB) UpdateVerificationTimeout(ctx context.Context, guildID snowflake.ID, seconds int32) error {
	_, err := db.pool.Exec(ctx, upsertTimeoutQuery, int64(guildID), seconds)
	return err
}
