package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"account-service/internal/domain"
	"account-service/internal/repository"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type AccountServiceInterface interface {
	CreateAccount(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	UpdateAccount(ctx context.Context, id string, req domain.UpdateAccountRequest) (*domain.Account, error)
	SuspendAccount(ctx context.Context, id string) (*domain.Account, error)
	CloseAccount(ctx context.Context, id string) (*domain.Account, error)
	DeleteAccount(ctx context.Context, id string) error
	ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, error)
}

type AccountService struct {
	accountRepository repository.AccountRepository
	auditService      *AuditService
}

func NewAccountService(accountRepository repository.AccountRepository, auditService *AuditService) *AccountService {
	return &AccountService{
		accountRepository: accountRepository,
		auditService:      auditService,
	}
}

func (s *AccountService) CreateAccount(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error) {
	if req.Email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if !emailRegex.MatchString(req.Email) {
		return nil, fmt.Errorf("invalid email format")
	}

	existing, err := s.accountRepository.GetByEmail(ctx, req.Email)
	if err == nil && existing != nil {
		return nil, fmt.Errorf("account with email %s already exists", req.Email)
	}

	account := &domain.Account{
		ID:      uuid.NewString(),
		Email:   req.Email,
		Name:    req.Name,
		Status:  domain.StatusActive,
		Balance: 0,
	}

	if err := s.accountRepository.Create(ctx, account); err != nil {
		log.WithError(err).WithField("email", req.Email).Error("Failed to create account")
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := s.auditService.RecordAccountCreated(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to record account creation: %w", err)
	}

	log.WithFields(log.Fields{
		"account_id": account.ID,
		"email":      account.Email,
	}).Info("Account successfully created")

	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	if id == "" {
		return nil, fmt.Errorf("account ID is required")
	}

	account, err := s.accountRepository.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

func (s *AccountService) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	account, err := s.accountRepository.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}

	return account, nil
}

// UpdateAccount runs the full load/mutate/save cycle: GetByID snapshots the
// audited fields, the request is applied to the loaded record and Save diffs
// the result, emitting one audit event per field that actually changed.
func (s *AccountService) UpdateAccount(ctx context.Context, id string, req domain.UpdateAccountRequest) (*domain.Account, error) {
	if id == "" {
		return nil, fmt.Errorf("account ID is required")
	}

	account, err := s.accountRepository.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load account for update: %w", err)
	}

	if req.Email != nil {
		if !emailRegex.MatchString(*req.Email) {
			return nil, fmt.Errorf("invalid email format")
		}
		account.Email = *req.Email
	}
	if req.Name != nil {
		account.Name = *req.Name
	}
	if req.Status != nil {
		if !isValidStatus(*req.Status) {
			return nil, fmt.Errorf("invalid status: %s", *req.Status)
		}
		account.Status = *req.Status
	}
	if req.Balance != nil {
		if *req.Balance < 0 {
			return nil, fmt.Errorf("balance cannot be negative")
		}
		account.Balance = *req.Balance
	}

	if err := s.accountRepository.Save(ctx, account); err != nil {
		log.WithError(err).WithField("account_id", id).Error("Failed to save account")
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	return account, nil
}

func (s *AccountService) SuspendAccount(ctx context.Context, id string) (*domain.Account, error) {
	if id == "" {
		return nil, fmt.Errorf("account ID is required")
	}

	account, err := s.accountRepository.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load account for suspension: %w", err)
	}

	if account.Status == domain.StatusSuspended {
		return account, nil
	}

	now := time.Now().UTC()
	account.Status = domain.StatusSuspended
	account.SuspendedAt = &now

	if err := s.accountRepository.Save(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to suspend account: %w", err)
	}

	log.WithField("account_id", id).Info("Account suspended")
	return account, nil
}

func (s *AccountService) CloseAccount(ctx context.Context, id string) (*domain.Account, error) {
	if id == "" {
		return nil, fmt.Errorf("account ID is required")
	}

	account, err := s.accountRepository.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load account for closing: %w", err)
	}

	if account.Status == domain.StatusClosed {
		return account, nil
	}

	account.Status = domain.StatusClosed

	if err := s.accountRepository.Save(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to close account: %w", err)
	}

	if err := s.auditService.RecordAccountClosed(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to record account closing: %w", err)
	}

	log.WithField("account_id", id).Info("Account closed")
	return account, nil
}

func (s *AccountService) DeleteAccount(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("account ID is required")
	}

	if err := s.accountRepository.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	return nil
}

func (s *AccountService) ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	accounts, err := s.accountRepository.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	return accounts, nil
}

func isValidStatus(status string) bool {
	for _, s := range domain.ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}
