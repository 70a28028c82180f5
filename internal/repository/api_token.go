package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"girodesk/internal/domain"
)

type APITokenRepository struct {
	db *sql.DB
}

func NewAPITokenRepository(db *sql.DB) *APITokenRepository {
	return &APITokenRepository{db: db}
}

// FindByPlainToken resolves a bearer token. Tokens may carry an "id|secret"
// prefix; only the sha256 of the secret part is stored.
func (r *APITokenRepository) FindByPlainToken(ctx context.Context, plainToken string) (*domain.APIToken, error) {
	plainToken = strings.TrimSpace(plainToken)
	if plainToken == "" {
		return nil, errors.New("empty token")
	}

	var (
		tokenID   *int64
		tokenPart string
	)

	if idx := strings.Index(plainToken, "|"); idx > 0 {
		if id, err := strconv.ParseInt(plainToken[:idx], 10, 64); err == nil {
			tokenID = &id
		}
		tokenPart = plainToken[idx+1:]
	} else {
		tokenPart = plainToken
	}

	sum := sha256.Sum256([]byte(tokenPart))
	hashStr := fmt.Sprintf("%x", sum)

	var tok domain.APIToken

	if tokenID != nil {
		query := `
			SELECT id, token, user_id, abilities, expires_at
			FROM api_tokens
			WHERE id = $1
			  AND (expires_at IS NULL OR expires_at > $2)
		`
		err := r.db.QueryRowContext(ctx, query, *tokenID, time.Now()).Scan(
			&tok.ID,
			&tok.TokenHash,
			&tok.UserID,
			&tok.Abilities,
			&tok.ExpiresAt,
		)
		if err == nil && tok.TokenHash == hashStr {
			return &tok, nil
		}
	}

	query := `
		SELECT id, token, user_id, abilities, expires_at
		FROM api_tokens
		WHERE token = $1
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY created_at DESC
		LIMIT 1
	`
	err := r.db.QueryRowContext(ctx, query, hashStr, time.Now()).Scan(
		&tok.ID,
		&tok.TokenHash,
		&tok.UserID,
		&tok.Abilities,
		&tok.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("token not found")
	}
	if err != nil {
		return nil, err
	}

	return &tok, nil
}
