// pkg/accounts/postgres.go
package accounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresStore constructs a PostgreSQL-backed account store.
func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates required tables if they do not already exist.
// Safe to call repeatedly (idempotent). The unique index on secret is the
// guard that makes first-boot master creation race-free.
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS accounts (
  id uuid PRIMARY KEY,
  name text NOT NULL,
  active boolean NOT NULL DEFAULT true,
  admins text[] NOT NULL DEFAULT '{}',
  reply_to text NOT NULL DEFAULT '',
  origins text[] NOT NULL DEFAULT '{}',
  redirect text NOT NULL DEFAULT '',
  secret text NOT NULL UNIQUE,
  html_template text NOT NULL DEFAULT '',
  text_template text NOT NULL DEFAULT '',
  stripe_id text NOT NULL DEFAULT '',
  card_type text NOT NULL DEFAULT '',
  card_digits text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

const accountCols = `id,name,active,admins,reply_to,origins,redirect,secret,html_template,text_template,stripe_id,card_type,card_digits,created_at,updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Name, &a.Active, &a.Admins, &a.ReplyTo, &a.Origins, &a.Redirect,
		&a.Secret, &a.HTMLTemplate, &a.TextTemplate, &a.StripeID, &a.CardType, &a.CardDigits,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

func (p *pgStore) GetByID(ctx context.Context, id string) (Account, error) {
	return scanAccount(p.dbPool.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id=$1`, id))
}

func (p *pgStore) GetBySecret(ctx context.Context, secret string) (Account, error) {
	return scanAccount(p.dbPool.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE secret=$1`, secret))
}

func (p *pgStore) Create(ctx context.Context, a Account) (Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Secret == "" {
		a.Secret = GenerateSecret()
	}
	row := p.dbPool.QueryRow(ctx, `INSERT INTO accounts(id,name,active,admins,reply_to,origins,redirect,secret,html_template,text_template)
	  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	  RETURNING `+accountCols, a.ID, a.Name, a.Active, a.Admins, a.ReplyTo, a.Origins, a.Redirect, a.Secret, a.HTMLTemplate, a.TextTemplate)
	created, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrSecretTaken
		}
		return Account{}, err
	}
	return created, nil
}

func (p *pgStore) Update(ctx context.Context, a Account) (Account, error) {
	// Secret is immutable; it is deliberately absent from the SET list.
	row := p.dbPool.QueryRow(ctx, `UPDATE accounts SET
	  name=$2, active=$3, admins=$4, reply_to=$5, origins=$6, redirect=$7,
	  html_template=$8, text_template=$9, stripe_id=$10, card_type=$11, card_digits=$12,
	  updated_at=NOW()
	  WHERE id=$1 RETURNING `+accountCols,
		a.ID, a.Name, a.Active, a.Admins, a.ReplyTo, a.Origins, a.Redirect,
		a.HTMLTemplate, a.TextTemplate, a.StripeID, a.CardType, a.CardDigits)
	return scanAccount(row)
}

func (p *pgStore) ListByAdmin(ctx context.Context, email string) ([]Account, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT `+accountCols+` FROM accounts WHERE $1 = ANY(admins) ORDER BY created_at`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
