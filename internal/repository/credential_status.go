package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/genius-academy-api/internal/models"
)

// transitionCredential moves a profile from one credential status to another.
// It reports false when the profile was not in the expected state, leaving it untouched.
func transitionCredential(ctx context.Context, exec sqlx.ExtContext, table, accountID string, from, to models.CredentialStatus, at time.Time) (bool, error) {
	var issuedAt *time.Time
	if to == models.CredentialIssued {
		issuedAt = &at
	}
	query := fmt.Sprintf(`UPDATE %s SET credential_status = $3, credential_issued_at = COALESCE($4, credential_issued_at) WHERE account_id = $1 AND credential_status = $2`, table)
	res, err := exec.ExecContext(ctx, query, accountID, from, to, issuedAt)
	if err != nil {
		return false, fmt.Errorf("transition %s credential: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition %s credential rows: %w", table, err)
	}
	return n == 1, nil
}
