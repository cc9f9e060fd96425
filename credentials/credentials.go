// Package credentials supplies the per-user access token used against the clip
// registry.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoToken means the user exists in no credential source or has no token.
var ErrNoToken = errors.New("no access token for user")

// Source looks up the access token for a user.
type Source interface {
	AccessToken(ctx context.Context, userID string) (string, error)
}

// Static hands out fixed tokens: per-user entries first, then Fallback.
type Static struct {
	Tokens   map[string]string
	Fallback string
}

func (s Static) AccessToken(_ context.Context, userID string) (string, error) {
	if tok, ok := s.Tokens[userID]; ok && tok != "" {
		return tok, nil
	}
	if s.Fallback != "" {
		return s.Fallback, nil
	}
	return "", ErrNoToken
}

// Postgres reads tokens from the application's user table.
type Postgres struct {
	pool  *pgxpool.Pool
	query string
}

// NewPostgres opens a pool using dsn. query must select a single text column
// and take the user id as $1.
func NewPostgres(ctx context.Context, dsn, query string) (*Postgres, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	if !strings.Contains(query, "$1") {
		return nil, fmt.Errorf("token query must reference $1")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	return &Postgres{pool: pool, query: query}, nil
}

func (p *Postgres) AccessToken(ctx context.Context, userID string) (string, error) {
	var token *string
	err := p.pool.QueryRow(ctx, p.query, userID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("lookup access token: %w", err)
	}
	if token == nil || *token == "" {
		return "", ErrNoToken
	}
	return *token, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}
