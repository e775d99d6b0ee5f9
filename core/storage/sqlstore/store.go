package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/calcbot/core/conversation"
	"github.com/m3rciful/calcbot/core/metrics"
)

const (
	selectState = `SELECT state FROM conversation_states WHERE chat_id = ?`
	upsertState = `INSERT INTO conversation_states (chat_id, state, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (chat_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`
)

// Store is a conversation.Store over a conversation_states table.
type Store struct {
	db     *sqlx.DB
	get    string
	upsert string
}

var _ conversation.Store = (*Store)(nil)

// New binds queries to the placeholder style of db's driver.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, get: db.Rebind(selectState), upsert: db.Rebind(upsertState)}
}

func (s *Store) Get(ctx context.Context, chatID int64) (conversation.State, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, s.get, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.IncStoreOp("postgres", "get", nil)
		return conversation.Start{}, nil
	}
	metrics.IncStoreOp("postgres", "get", err)
	if err != nil {
		return nil, &conversation.StoreError{Op: "get", ChatID: chatID, Err: err}
	}
	st, err := conversation.Decode([]byte(raw))
	if err != nil {
		return nil, &conversation.StoreError{Op: "decode", ChatID: chatID, Err: err}
	}
	return st, nil
}

func (s *Store) Set(ctx context.Context, chatID int64, st conversation.State) error {
	raw, err := conversation.Encode(st)
	if err != nil {
		return &conversation.StoreError{Op: "encode", ChatID: chatID, Err: err}
	}
	_, err = s.db.ExecContext(ctx, s.upsert, chatID, string(raw))
	metrics.IncStoreOp("postgres", "set", err)
	if err != nil {
		return &conversation.StoreError{Op: "set", ChatID: chatID, Err: err}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }
