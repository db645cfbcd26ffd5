// pkg/authtokens/postgres.go
package authtokens

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresStore constructs a PostgreSQL-backed token store.
func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates required tables if they do not already exist.
// Safe to call repeatedly (idempotent). login_identities carries the
// first-login index behind the signup flag; its primary key makes the
// classification race-free.
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS auth_tokens (
  ref text PRIMARY KEY,
  account_id uuid NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
  email text NOT NULL,
  redirect text NOT NULL DEFAULT '',
  client_state text NOT NULL DEFAULT '',
  state text NOT NULL DEFAULT 'sent',
  created_at timestamptz NOT NULL DEFAULT NOW(),
  consumed_at timestamptz
);
CREATE INDEX IF NOT EXISTS auth_tokens_account_created_idx ON auth_tokens(account_id, created_at DESC);
CREATE TABLE IF NOT EXISTS login_identities (
  account_id uuid NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
  email text NOT NULL,
  first_login_at timestamptz NOT NULL DEFAULT NOW(),
  PRIMARY KEY (account_id, email)
);
`)
	return err
}

const tokenCols = `ref,account_id,email,redirect,client_state,state,created_at,consumed_at`

func scanToken(row pgx.Row) (Token, error) {
	var t Token
	var consumedAt *time.Time
	err := row.Scan(&t.Ref, &t.AccountID, &t.Email, &t.Redirect, &t.ClientState, &t.State, &t.CreatedAt, &consumedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Token{}, ErrNotFound
	}
	if err != nil {
		return Token{}, err
	}
	if consumedAt != nil {
		t.ConsumedAt = *consumedAt
	}
	return t, nil
}

func (p *pgStore) Create(ctx context.Context, t Token) (Token, error) {
	if t.Ref == "" {
		t.Ref = NewRef()
	}
	if t.State == "" {
		t.State = StateSent
	}
	row := p.dbPool.QueryRow(ctx, `INSERT INTO auth_tokens(ref,account_id,email,redirect,client_state,state)
	  VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+tokenCols,
		t.Ref, t.AccountID, t.Email, t.Redirect, t.ClientState, t.State)
	return scanToken(row)
}

func (p *pgStore) Get(ctx context.Context, ref string) (Token, error) {
	return scanToken(p.dbPool.QueryRow(ctx, `SELECT `+tokenCols+` FROM auth_tokens WHERE ref=$1`, ref))
}

func (p *pgStore) MarkOpened(ctx context.Context, ref string) (bool, error) {
	// Conditional update; zero rows affected means the token was not in
	// 'sent', which is fine.
	tag, err := p.dbPool.Exec(ctx, `UPDATE auth_tokens SET state='opened' WHERE ref=$1 AND state='sent'`, ref)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Consume performs the one-time transition as a single conditional UPDATE
// so concurrent callers race on the row, not in application code. The
// loser re-reads to classify its failure.
func (p *pgStore) Consume(ctx context.Context, ref string, cutoff time.Time) (Token, error) {
	row := p.dbPool.QueryRow(ctx, `UPDATE auth_tokens
	  SET state='consumed', consumed_at=NOW()
	  WHERE ref=$1 AND state IN ('sent','opened') AND ($2::timestamptz IS NULL OR created_at >= $2)
	  RETURNING `+tokenCols, ref, nullableTime(cutoff))
	t, err := scanToken(row)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Token{}, err
	}
	cur, gerr := p.Get(ctx, ref)
	if gerr != nil {
		return Token{}, gerr
	}
	if cur.State == StateConsumed {
		return Token{}, ErrAlreadyConsumed
	}
	return Token{}, ErrTokenExpired
}

func (p *pgStore) RecordFirstLogin(ctx context.Context, accountID, email string) (bool, error) {
	tag, err := p.dbPool.Exec(ctx, `INSERT INTO login_identities(account_id, email)
	  VALUES ($1,$2) ON CONFLICT (account_id, email) DO NOTHING`, accountID, email)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (p *pgStore) ListRecentByAccount(ctx context.Context, accountID string, limit int) ([]Token, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT `+tokenCols+` FROM auth_tokens
	  WHERE account_id=$1 ORDER BY created_at DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
