package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/storage"
)

const accountColumns = `id, platform, name, credentials_path, credentials_updated_at,
	daily_cap, posts_today, post_day, weight`

func (s *Store) UpsertAccount(ctx context.Context, account domain.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			platform=excluded.platform,
			name=excluded.name,
			credentials_path=excluded.credentials_path,
			credentials_updated_at=excluded.credentials_updated_at,
			daily_cap=excluded.daily_cap,
			weight=excluded.weight`,
		account.ID, account.Platform, account.Name, account.CredentialsPath,
		formatTime(account.CredentialsUpdatedAt), account.DailyCap,
		account.PostsToday, account.PostDay, account.Weight,
	)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", account.ID, err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return account, nil
}

func (s *Store) ListAccounts(ctx context.Context, platform string) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	var args []any
	if platform != "" {
		query += ` WHERE platform = ?`
		args = append(args, platform)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// TryIncrementPostCount is a single conditional UPDATE so overlapping
// scheduler ticks can never push the counter past the cap. The rollover
// arm checks the cap too, so a zero-cap account never posts.
func (s *Store) TryIncrementPostCount(ctx context.Context, accountID, day string, cap int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET posts_today = CASE WHEN post_day = ? THEN posts_today + 1 ELSE 1 END,
		    post_day = ?
		WHERE id = ? AND ((post_day <> ? AND ? > 0) OR (post_day = ? AND posts_today < ?))`,
		day, day, accountID, day, cap, day, cap,
	)
	if err != nil {
		return false, fmt.Errorf("increment post count for %s: %w", accountID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		if _, getErr := s.GetAccount(ctx, accountID); getErr != nil {
			return false, getErr
		}
		return false, nil
	}
	return true, nil
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		account   domain.Account
		updatedAt string
	)
	err := row.Scan(
		&account.ID, &account.Platform, &account.Name, &account.CredentialsPath,
		&updatedAt, &account.DailyCap, &account.PostsToday, &account.PostDay, &account.Weight,
	)
	if err != nil {
		return nil, err
	}
	account.CredentialsUpdatedAt = parseTime(updatedAt)
	return &account, nil
}
