package db

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jackc/pgx/v5"
)

// AddPinWhitelist allows a member to pin in a channel. Adding twice is a no-op.
func (db *DB) AddPinWhitelist(ctx context.Context, channelID snowflake.ID, memberID snowflake.ID) error {
	_, err := db.pool.Exec(ctx, insertPinWhitelistQuery, int64(channelID), int64(memberID))
	return err
}

func (db *DB) RemovePinWhitelist(ctx context.Context, channelID snowflake.ID, memberID snowflake.ID) error {
	tag, err := db.pool.Exec(ctx, deletePinWhitelistQuery, int64(channelID), int64(memberID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) ListPinWhitelist(ctx context.Context, channelID snowflake.ID) ([]snowflake.ID, error) {
	rows, _ := db.pool.Query(ctx, selectPinWhitelistQuery, int64(channelID))
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	members := make([]snowflake.ID, len(ids))
	for i, id := range ids {
		members[i] = snowflake.ID(id)
	}
	return members, nil
}

func (db *DB) IsPinWhitelisted(ctx context.Context, channelID snowflake.ID, memberID snowflake.ID) (bool, error) {
	var ok bool
	err := db.pool.QueryRow(ctx, existsPinWhitelistQuery, int64(channelID), int64(memberID)).Scan(&ok)
	return ok, err
}
