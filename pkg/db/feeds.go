package db

import (
	"context"
	"errors"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Feed is a named announcement channel subscription backed by a role.
type Feed struct {
	ChannelID snowflake.ID
	Name      string
	RoleID    snowflake.ID
}

type feedRow struct {
	ChannelID int64  `db:"channel_id"`
	Name      string `db:"name"`
	RoleID    int64  `db:"role_id"`
}

func (r feedRow) feed() Feed {
	return Feed{ChannelID: snowflake.ID(r.ChannelID), Name: r.Name, RoleID: snowflake.ID(r.RoleID)}
}

func (db *DB) CreateFeed(ctx context.Context, feed Feed) error {
	_, err := db.pool.Exec(ctx, insertFeedQuery, int64(feed.ChannelID), feed.Name, int64(feed.RoleID))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationErrorCode {
		return ErrExists
	}
	return err
}

// DeleteFeed removes the feed and returns it so the caller can drop its role.
func (db *DB) DeleteFeed(ctx context.Context, channelID snowflake.ID, name string) (Feed, error) {
	rows, _ := db.pool.Query(ctx, deleteFeedQuery, int64(channelID), name)
	return collectFeed(rows)
}

func (db *DB) Feed(ctx context.Context, channelID snowflake.ID, name string) (Feed, error) {
	rows, _ := db.pool.Query(ctx, selectFeedQuery, int64(channelID), name)
	return collectFeed(rows)
}

func (db *DB) Feeds(ctx context.Context, channelID snowflake.ID) ([]Feed, error) {
	rows, _ := db.pool.Query(ctx, selectFeedsQuery, int64(channelID))
	feedRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[feedRow])
	if err != nil {
		return nil, err
	}
	feeds := make([]Feed, len(feedRows))
	for i, r := range feedRows {
		feeds[i] = r.feed()
	}
	return feeds, nil
}

func collectFeed(rows pgx.Rows) (Feed, error) {
	r, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[feedRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return Feed{}, ErrNotFound
	}
	if err != nil {
		return Feed{}, err
	}
	return r.feed(), nil
}
