package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/storage"
)

var accountColumns = []string{
	"id", "platform", "name", "credentials_path", "credentials_updated_at",
	"daily_cap", "posts_today", "post_day", "weight",
}

func (s *Store) UpsertAccount(ctx context.Context, account domain.Account) error {
	query, args, err := builder.
		Insert("accounts").
		Columns(accountColumns...).
		Values(
			account.ID, account.Platform, account.Name, account.CredentialsPath,
			account.CredentialsUpdatedAt, account.DailyCap, account.PostsToday,
			account.PostDay, account.Weight,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			platform=EXCLUDED.platform,
			name=EXCLUDED.name,
			credentials_path=EXCLUDED.credentials_path,
			credentials_updated_at=EXCLUDED.credentials_updated_at,
			daily_cap=EXCLUDED.daily_cap,
			weight=EXCLUDED.weight`).
		ToSql()
	if err != nil {
		return storage.ErrBadQuery
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert account %s: %w", account.ID, err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	query, args, err := builder.
		Select(accountColumns...).
		From("accounts").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, storage.ErrBadQuery
	}

	account, err := scanAccount(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return account, nil
}

func (s *Store) ListAccounts(ctx context.Context, platform string) ([]domain.Account, error) {
	q := builder.Select(accountColumns...).From("accounts").OrderBy("id ASC")
	if platform != "" {
		q = q.Where(sq.Eq{"platform": platform})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, storage.ErrBadQuery
	}

	rows, err := s.pool.Query(ctx, query, args...)
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

// TryIncrementPostCount runs one conditional UPDATE; Postgres row locking
// makes it safe against overlapping scheduler ticks. The rollover arm
// checks the cap too, so a zero-cap account never posts.
func (s *Store) TryIncrementPostCount(ctx context.Context, accountID, day string, cap int) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET posts_today = CASE WHEN post_day = $1 THEN posts_today + 1 ELSE 1 END,
		    post_day = $1
		WHERE id = $2 AND ((post_day <> $1 AND $3 > 0) OR (post_day = $1 AND posts_today < $3))`,
		day, accountID, cap,
	)
	if err != nil {
		return false, fmt.Errorf("increment post count for %s: %w", accountID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetAccount(ctx, accountID); getErr != nil {
			return false, getErr
		}
		return false, nil
	}
	return true, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	err := row.Scan(
		&account.ID, &account.Platform, &account.Name, &account.CredentialsPath,
		&account.CredentialsUpdatedAt, &account.DailyCap, &account.PostsToday,
		&account.PostDay, &account.Weight,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
