package postgres

import (
	"context"
	"fmt"
)

// Refresh tokens are stored as a text array per email, so one account
// can hold sessions on several devices and revoke them independently.

func (r *SessionRepository) q() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *SessionRepository) Append(ctx context.Context, email, token string) error {
	_, err := r.q().Exec(ctx, `
INSERT INTO refresh_tokens (email, tokens)
VALUES ($1, ARRAY[$2])
ON CONFLICT (email) DO UPDATE
   SET tokens = array_append(refresh_tokens.tokens, $2)
`, email, token)
	if err != nil {
		return fmt.Errorf("append refresh token: %w", err)
	}
	return nil
}

// Remove drops the revoked token from the account's session array.
// array_remove strips every occurrence, but each signed token carries a
// unique jti claim, so at most one array entry ever matches.
func (r *SessionRepository) Remove(ctx context.Context, email, token string) error {
	_, err := r.q().Exec(ctx, `
UPDATE refresh_tokens
   SET tokens = array_remove(tokens, $2)
 WHERE email = $1
`, email, token)
	if err != nil {
		return fmt.Errorf("remove refresh token: %w", err)
	}
	return nil
}

func (r *SessionRepository) Contains(ctx context.Context, email, token string) (bool, error) {
	var found bool
	err := r.q().QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM refresh_tokens WHERE email = $1 AND $2 = ANY(tokens)
)
`, email, token).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("check refresh token: %w", err)
	}
	return found, nil
}
