package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/threadflow/internal/models"
)

var ErrTokenConflict = errors.New("account token was rotated concurrently")

type AccountRepository interface {
	Create(ctx context.Context, acc *models.Account) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	ListByIDs(ctx context.Context, ids []int64) (map[int64]*models.Account, error)
	ListExpiring(ctx context.Context, before time.Time) ([]*models.Account, error)
	SetToken(ctx context.Context, id int64, prevExpiresAt time.Time, acc *models.Account) error
}

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `id, username, access_token, refresh_token, token_expires_at, client_id, client_secret, created_at, updated_at`

func scanAccount(row rowScanner) (*models.Account, error) {
	var acc models.Account
	err := row.Scan(&acc.ID, &acc.Username, &acc.AccessToken, &acc.RefreshToken, &acc.TokenExpiresAt,
		&acc.ClientID, &acc.ClientSecret, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *accountRepository) Create(ctx context.Context, acc *models.Account) (int64, error) {
	query := `
		INSERT INTO accounts (
			username,
			access_token,
			refresh_token,
			token_expires_at,
			client_id,
			client_secret
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		acc.Username,
		acc.AccessToken,
		acc.RefreshToken,
		acc.TokenExpiresAt,
		acc.ClientID,
		acc.ClientSecret,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		slog.Info(err.Error())
		return nil, err
	}

	return acc, nil
}

func (r *accountRepository) ListByIDs(ctx context.Context, ids []int64) (map[int64]*models.Account, error) {
	accounts := make(map[int64]*models.Account, len(ids))
	if len(ids) == 0 {
		return accounts, nil
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts[acc.ID] = acc
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return accounts, nil
}

// ListExpiring returns accounts whose access token expires before the given time,
// including ones that already expired.
func (r *accountRepository) ListExpiring(ctx context.Context, before time.Time) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE token_expires_at < $1 AND refresh_token <> ''
		ORDER BY token_expires_at
	`
	rows, err := r.db.QueryContext(ctx, query, before)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, acc)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return accounts, nil
}

// SetToken stores rotated tokens only if the row still carries prevExpiresAt, so two
// refreshers racing on one account cannot both win.
func (r *accountRepository) SetToken(ctx context.Context, id int64, prevExpiresAt time.Time, acc *models.Account) error {
	query := `
		UPDATE accounts
		SET
			access_token = $3,
			refresh_token = COALESCE(NULLIF($4, ''), refresh_token),
			token_expires_at = $5,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND token_expires_at = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, prevExpiresAt, acc.AccessToken, acc.RefreshToken, acc.TokenExpiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		slog.Info("token update skipped; expiry changed underneath", "account_id", id)
		return ErrTokenConflict
	}

	return nil
}
