package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Store defines the persistence operations the reply engine and the
// maintenance tasks rely on. Methods accept context.Context for cancellation
// and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveConversation appends rec and trims the log to the newest keep rows.
	SaveConversation(ctx context.Context, rec ConversationRecord, keep int) error

	// LoadConversations returns up to limit records, newest first.
	LoadConversations(ctx context.Context, limit int) ([]ConversationRecord, error)

	// ReplaceDailyCounts atomically replaces the daily counter buckets.
	ReplaceDailyCounts(ctx context.Context, counts []DailyCount) error

	// LoadDailyCounts returns the buckets oldest first.
	LoadDailyCounts(ctx context.Context) ([]DailyCount, error)

	// AppendAudit appends one entry to an audit log.
	AppendAudit(ctx context.Context, entry AuditEntry) error

	// ListAudit returns up to limit entries of kind, newest first.
	ListAudit(ctx context.Context, kind AuditKind, limit int) ([]AuditEntry, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) SaveConversation(ctx context.Context, rec ConversationRecord, keep int) error {
	if rec.ID == "" {
		return errors.New("conversation record must have an id")
	}
	if rec.Timestamp.IsZero() {
		return errors.New("conversation record must have a non-zero timestamp")
	}
	if keep <= 0 {
		return fmt.Errorf("invalid conversation retention %d", keep)
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		rec.Timestamp = rec.Timestamp.UTC()
		_, err := tx.NamedExecContext(ctx, `
            INSERT INTO conversations (id, phone_number, incoming_message, bot_reply, timestamp)
            VALUES (:id, :phone_number, :incoming_message, :bot_reply, :timestamp);
        `, rec)
		if err != nil {
			return fmt.Errorf("failed to insert conversation %s: %w", rec.ID, err)
		}

		res, err := tx.ExecContext(ctx, `
            DELETE FROM conversations
            WHERE seq NOT IN (SELECT seq FROM conversations ORDER BY seq DESC LIMIT ?);
        `, keep)
		if err != nil {
			return fmt.Errorf("failed to trim conversations: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			s.logger.DebugContext(ctx, "Trimmed conversation log", "removed", n, "keep", keep)
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving conversation", "conversation_id", rec.ID, "error", err)
		return err
	}
	return nil
}

func (s *sqlxStore) LoadConversations(ctx context.Context, limit int) ([]ConversationRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	var records []ConversationRecord
	err := s.db.SelectContext(ctx, &records, `
        SELECT seq, id, phone_number, incoming_message, bot_reply, timestamp
        FROM conversations
        ORDER BY seq DESC
        LIMIT ?;
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}
	return records, nil
}

func (s *sqlxStore) ReplaceDailyCounts(ctx context.Context, counts []DailyCount) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM daily_counts;`); err != nil {
			return fmt.Errorf("failed to clear daily counts: %w", err)
		}
		for i, c := range counts {
			c.Position = i
			_, err := tx.NamedExecContext(ctx, `
                INSERT INTO daily_counts (position, date, count) VALUES (:position, :date, :count);
            `, c)
			if err != nil {
				return fmt.Errorf("failed to insert daily count %s: %w", c.Date, err)
			}
		}
		return nil
	})
}

func (s *sqlxStore) LoadDailyCounts(ctx context.Context) ([]DailyCount, error) {
	var counts []DailyCount
	err := s.db.SelectContext(ctx, &counts, `SELECT position, date, count FROM daily_counts ORDER BY position ASC;`)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily counts: %w", err)
	}
	return counts, nil
}

func (s *sqlxStore) AppendAudit(ctx context.Context, entry AuditEntry) error {
	if entry.Kind == "" {
		return errors.New("audit entry must have a kind")
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	_, err := s.db.NamedExecContext(ctx, `
        INSERT INTO audit_log (kind, chat_id, body, created_at)
        VALUES (:kind, :chat_id, :body, :created_at);
    `, entry)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error appending audit entry", "kind", entry.Kind, "chat_id", entry.ChatID, "error", err)
		return fmt.Errorf("failed to append %s audit entry: %w", entry.Kind, err)
	}
	return nil
}

func (s *sqlxStore) ListAudit(ctx context.Context, kind AuditKind, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	var entries []AuditEntry
	err := s.db.SelectContext(ctx, &entries, `
        SELECT id, kind, chat_id, body, created_at
        FROM audit_log
        WHERE kind = ?
        ORDER BY id DESC
        LIMIT ?;
    `, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s audit entries: %w", kind, err)
	}
	return entries, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)")

	// VACUUM must run outside a transaction in SQLite
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed")
	}

	return nil
}

func (s *sqlxStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
