package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/vovakirdan/mentorchat/internal/store"
	"github.com/vovakirdan/mentorchat/internal/store/migrations"
)

const messageColumns = `id, sender, recipient, content, created_at, edited`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store.
// dbPath is the path to the SQLite database file, or ":memory:".
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate applies pending schema migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) (int, error) {
	return migrations.Up(ctx, s.db, goose.DialectSQLite3)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== MessageStore implementation ====

// CreateMessage persists a new message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()

	query := `
		INSERT INTO messages (id, sender, recipient, content, created_at, edited)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.Sender, msg.Recipient, msg.Content, msg.CreatedAt, msg.Edited,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	return getMessage(ctx, s.db, id)
}

// UpdateMessageContent replaces the content of a message owned by sender.
func (s *SQLiteStore) UpdateMessageContent(ctx context.Context, id, sender, content string) (*store.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	query := `
		UPDATE messages
		SET content = ?, edited = 1
		WHERE id = ? AND sender = ?
	`
	result, err := tx.ExecContext(ctx, query, content, id, sender)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("message %s: %w", id, store.ErrNotFound)
	}

	msg, err := getMessage(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return msg, nil
}

// DeleteMessage permanently removes a message owned by sender.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id, sender string) (*store.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	msg, err := getMessage(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if msg.Sender != sender {
		return nil, fmt.Errorf("message %s: %w", id, store.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ? AND sender = ?`, id, sender); err != nil {
		return nil, fmt.Errorf("delete message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return msg, nil
}

// ==== HistoryStore implementation ====

// ListConversation retrieves messages between a and b in chronological order.
// With a limit, the most recent messages are kept.
func (s *SQLiteStore) ListConversation(ctx context.Context, a, b string, limit int, before *time.Time) ([]*store.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE ((sender = ? AND recipient = ?) OR (sender = ? AND recipient = ?))
	`
	args := []interface{}{a, b, b, a}
	if before != nil {
		query += ` AND created_at < ?`
		args = append(args, before.UTC())
	}
	if limit <= 0 {
		limit = -1 // no limit
	}
	query += ` ORDER BY created_at DESC, seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Reverse to get chronological order
	for i := 0; i < len(messages)/2; i++ {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

// ListConversations returns the latest message per conversation partner, newest first.
func (s *SQLiteStore) ListConversations(ctx context.Context, identity string) ([]*store.ConversationSummary, error) {
	query := `
		SELECT sender, recipient, content, created_at
		FROM messages
		WHERE seq IN (
			SELECT MAX(seq)
			FROM messages
			WHERE sender = ? OR recipient = ?
			GROUP BY CASE WHEN sender = ? THEN recipient ELSE sender END
		)
		ORDER BY created_at DESC, seq DESC
	`
	rows, err := s.db.QueryContext(ctx, query, identity, identity, identity)
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

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getMessage(ctx context.Context, q queryRower, id string) (*store.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`
	msg, err := scanMessage(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %s: %w", id, store.ErrNotFound)
		}
		return nil, err
	}
	return msg, nil
}

func scanMessage(row scanner) (*store.Message, error) {
	var msg store.Message
	if err := row.Scan(
		&msg.ID,
		&msg.Sender,
		&msg.Recipient,
		&msg.Content,
		&msg.CreatedAt,
		&msg.Edited,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return &msg, nil
}
