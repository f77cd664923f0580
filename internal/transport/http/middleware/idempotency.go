package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrIdempotencyConflict means the key was already used with a different
// request payload.
var ErrIdempotencyConflict = errors.New("idempotency key reused with different request")

// IdempotencyStore persists responses for mutating endpoints keyed by the
// caller's Idempotency-Key header, so retries replay the stored response
// instead of running the mutation twice.
type IdempotencyStore struct {
	db *pgxpool.Pool
}

func NewIdempotencyStore(db *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Check returns the stored response for (userID, endpoint, key) when one
// exists. A hash mismatch on an existing key reports ErrIdempotencyConflict.
func (s *IdempotencyStore) Check(ctx context.Context, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error) {
	if s == nil || s.db == nil || key == "" {
		return nil, false, nil
	}

	var storedHash string
	var response json.RawMessage
	err := s.db.QueryRow(ctx, `
		SELECT request_hash, response_json
		FROM idempotency_keys
		WHERE user_id = $1 AND endpoint = $2 AND key = $3
	`, userID, endpoint, key).Scan(&storedHash, &response)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if storedHash != requestHash {
		return nil, false, ErrIdempotencyConflict
	}
	return response, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, userID, endpoint, key, requestHash string, response json.RawMessage) error {
	if s == nil || s.db == nil || key == "" {
		return nil
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO idempotency_keys (user_id, endpoint, key, request_hash, response_json)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, endpoint, key) DO UPDATE
		SET response_json = EXCLUDED.response_json
		WHERE idempotency_keys.request_hash = EXCLUDED.request_hash
	`, userID, endpoint, key, requestHash, response)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}
