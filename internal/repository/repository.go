package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"account-service/internal/domain"

	log "github.com/sirupsen/logrus"

	_ "github.com/lib/pq"
)

// ChangeTracker is the slice of the change-detection core the repository
// needs: OnLoad after a row is materialized, OnSave before an update is
// flushed.
type ChangeTracker interface {
	OnLoad(record interface{}) error
	OnSave(ctx context.Context, record interface{}) error
}

type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Save(ctx context.Context, account *domain.Account) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]domain.Account, error)
}

type postgresAccountRepository struct {
	db      *sql.DB
	tracker ChangeTracker
}

func NewPostgresAccountRepository(db *sql.DB, tracker ChangeTracker) *postgresAccountRepository {
	return &postgresAccountRepository{db: db, tracker: tracker}
}

func (r *postgresAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	log.WithFields(log.Fields{
		"account_id": account.ID,
		"email":      account.Email,
		"name":       account.Name,
	}).Info("Creating new account in database")

	query := `
		INSERT INTO accounts (
			id, email, name,
			status, balance, suspended_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.Name,
		account.Status,
		account.Balance,
		account.SuspendedAt,
	)

	if err != nil {
		log.WithError(err).WithField("account_id", account.ID).Error("Failed to create account")
		return fmt.Errorf("failed to create account: %w", err)
	}

	log.WithField("account_id", account.ID).Info("Account successfully created")
	return nil
}

const accountColumns = `
		SELECT id, email, name,
			status, balance, suspended_at,
			created_at, updated_at
		FROM accounts
`

func (r *postgresAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := r.db.QueryRowContext(ctx, accountColumns+`WHERE id = $1`, id)

	account, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrAccountNotFound
		}
		log.WithError(err).WithField("account_id", id).Error("Failed to get account by ID")
		return nil, fmt.Errorf("failed to get account by ID: %w", err)
	}

	// Snapshot audited fields so the matching Save can diff against them.
	if err := r.tracker.OnLoad(account); err != nil {
		return nil, fmt.Errorf("failed to track account load: %w", err)
	}

	return account, nil
}

func (r *postgresAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := r.db.QueryRowContext(ctx, accountColumns+`WHERE email = $1`, email)

	account, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrAccountNotFound
		}
		log.WithError(err).WithField("email", email).Error("Failed to get account by email")
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}

	if err := r.tracker.OnLoad(account); err != nil {
		return nil, fmt.Errorf("failed to track account load: %w", err)
	}

	return account, nil
}

// Save flushes a previously loaded, possibly mutated account. The change
// tracker runs before the UPDATE so every detected field change is handed to
// the notification sink before the row is written; a sink failure aborts the
// save.
func (r *postgresAccountRepository) Save(ctx context.Context, account *domain.Account) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.tracker.OnSave(ctx, account); err != nil {
		log.WithError(err).WithField("account_id", account.ID).Error("Change tracking failed on save")
		return fmt.Errorf("failed to track account save: %w", err)
	}

	query := `
		UPDATE accounts SET
			email = $1,
			name = $2,
			status = $3,
			balance = $4,
			suspended_at = $5,
			updated_at = NOW()
		WHERE id = $6
	`

	result, err := r.db.ExecContext(ctx, query,
		account.Email,
		account.Name,
		account.Status,
		account.Balance,
		account.SuspendedAt,
		account.ID,
	)

	if err != nil {
		log.WithError(err).WithField("account_id", account.ID).Error("Failed to save account")
		return fmt.Errorf("failed to save account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not determine rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrAccountNotFound
	}

	log.WithField("account_id", account.ID).Info("Account successfully saved")
	return nil
}

func (r *postgresAccountRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	log.WithField("account_id", id).Info("Deleting account from database")

	query := `DELETE FROM accounts WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		log.WithError(err).WithField("account_id", id).Error("Failed to delete account")
		return fmt.Errorf("failed to delete account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not determine rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrAccountNotFound
	}

	log.WithField("account_id", id).Info("Account successfully deleted")
	return nil
}

func (r *postgresAccountRepository) List(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := accountColumns + `
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		log.WithError(err).Error("Failed to list accounts")
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	// Listed rows are read-only projections; tracking them would leave
	// snapshots behind for accounts that are never saved.
	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			log.WithError(err).Error("Failed to scan account row")
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts = append(accounts, *account)
	}

	if err := rows.Err(); err != nil {
		log.WithError(err).Error("Error iterating over account rows")
		return nil, fmt.Errorf("error iterating over account rows: %w", err)
	}

	return accounts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	var suspendedAt sql.NullTime

	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.Name,
		&account.Status,
		&account.Balance,
		&suspendedAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if suspendedAt.Valid {
		account.SuspendedAt = &suspendedAt.Time
	}

	return &account, nil
}
