// Package postgres implements the message store on PostgreSQL through a pgx pool.
// Queries are built with squirrel using dollar placeholders.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql (goose)
	"github.com/pressly/goose/v3"

	"github.com/vovakirdan/mentorchat/internal/store"
	"github.com/vovakirdan/mentorchat/internal/store/migrations"
)

var (
	psql           = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	messageColumns = []string{"id", "sender", "recipient", "content", "created_at", "edited"}
)

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// Store implements store.Store for PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewPool parses the DSN, applies pool settings and pings the database.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate applies pending migrations using a short-lived database/sql handle,
// since goose requires *sql.DB.
func Migrate(ctx context.Context, dsn string) (int, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return 0, fmt.Errorf("sql.Open: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return 0, fmt.Errorf("db ping: %w", err)
	}
	return migrations.Up(ctx, db, goose.DialectPostgres)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// CreateMessage persists a new message.
func (s *Store) CreateMessage(ctx context.Context, msg *store.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()

	query, args, err := psql.Insert("messages").
		Columns(messageColumns...).
		Values(msg.ID, msg.Sender, msg.Recipient, msg.Content, msg.CreatedAt, msg.Edited).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return mapError(err, msg.ID)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *Store) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	query, args, err := psql.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	return s.queryMessage(ctx, id, query, args)
}

// UpdateMessageContent replaces the content of a message owned by sender in one statement.
func (s *Store) UpdateMessageContent(ctx context.Context, id, sender, content string) (*store.Message, error) {
	query, args, err := psql.Update("messages").
		Set("content", content).
		Set("edited", true).
		Where(sq.Eq{"id": id, "sender": sender}).
		Suffix(returning()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}
	return s.queryMessage(ctx, id, query, args)
}

// DeleteMessage permanently removes a message owned by sender and returns it.
func (s *Store) DeleteMessage(ctx context.Context, id, sender string) (*store.Message, error) {
	query, args, err := psql.Delete("messages").
		Where(sq.Eq{"id": id, "sender": sender}).
		Suffix(returning()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete: %w", err)
	}
	return s.queryMessage(ctx, id, query, args)
}

// ListConversation retrieves messages between a and b in chronological order.
func (s *Store) ListConversation(ctx context.Context, a, b string, limit int, before *time.Time) ([]*store.Message, error) {
	builder := psql.Select(messageColumns...).
		From("messages").
		Where(sq.Or{
			sq.Eq{"sender": a, "recipient": b},
			sq.Eq{"sender": b, "recipient": a},
		}).
		OrderBy("created_at DESC", "seq DESC")
	if before != nil {
		builder = builder.Where(sq.Lt{"created_at": before.UTC()})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	for i := 0; i < len(messages)/2; i++ {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}
	return messages, nil
}

// ListConversations returns the latest message per conversation partner, newest first.
func (s *Store) ListConversations(ctx context.Context, identity string) ([]*store.ConversationSummary, error) {
	query, args, err := psql.Select("sender", "recipient", "content", "created_at").
		From("messages").
		Where(sq.Expr(`seq IN (
			SELECT MAX(seq) FROM messages
			WHERE sender = ? OR recipient = ?
			GROUP BY CASE WHEN sender = ? THEN recipient ELSE sender END
		)`, identity, identity, identity)).
		OrderBy("created_at DESC", "seq DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	summaries := make([]*store.ConversationSummary, 0)
	for rows.Next() {
		var sender, recipient string
		var summary store.ConversationSummary
		if err := rows.Scan(&sender, &recipient, &summary.LastMessage, &summary.Timestamp); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		summary.Partner = sender
		if sender == identity {
			summary.Partner = recipient
		}
		summaries = append(summaries, &summary)
	}

	return summaries, rows.Err()
}

func (s *Store) queryMessage(ctx context.Context, id, query string, args []any) (*store.Message, error) {
	msg, err := scanMessage(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapError(err, id)
	}
	return msg, nil
}

func returning() string {
	return "RETURNING id, sender, recipient, content, created_at, edited"
}

func scanMessage(row pgx.Row) (*store.Message, error) {
	var msg store.Message
	if err := row.Scan(&msg.ID, &msg.Sender, &msg.Recipient, &msg.Content, &msg.CreatedAt, &msg.Edited); err != nil {
		return nil, err
	}
	return &msg, nil
}

// mapError converts pgx errors to store errors.
func mapError(err error, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("message %s: %w", id, store.ErrNotFound)
	}
	return fmt.Errorf("message %s: %w", id, err)
}
