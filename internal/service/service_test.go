package service

import (
	"context"
	"testing"

	"account-service/internal/domain"
	"account-service/internal/repository"
	"account-service/internal/tracker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryAccountRepository mimics the postgres repository's lifecycle hooks:
// OnLoad after a record is materialized, OnSave before it is flushed.
type memoryAccountRepository struct {
	tracker  repository.ChangeTracker
	accounts map[string]domain.Account
}

func newMemoryAccountRepository(tracker repository.ChangeTracker) *memoryAccountRepository {
	return &memoryAccountRepository{
		tracker:  tracker,
		accounts: make(map[string]domain.Account),
	}
}

func (r *memoryAccountRepository) Create(_ context.Context, account *domain.Account) error {
	r.accounts[account.ID] = *account
	return nil
}

func (r *memoryAccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	stored, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	account := stored
	if err := r.tracker.OnLoad(&account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *memoryAccountRepository) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	for _, stored := range r.accounts {
		if stored.Email == email {
			account := stored
			if err := r.tracker.OnLoad(&account); err != nil {
				return nil, err
			}
			return &account, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *memoryAccountRepository) Save(ctx context.Context, account *domain.Account) error {
	if _, ok := r.accounts[account.ID]; !ok {
		return domain.ErrAccountNotFound
	}
	if err := r.tracker.OnSave(ctx, account); err != nil {
		return err
	}
	r.accounts[account.ID] = *account
	return nil
}

func (r *memoryAccountRepository) Delete(_ context.Context, id string) error {
	if _, ok := r.accounts[id]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(r.accounts, id)
	return nil
}

func (r *memoryAccountRepository) List(_ context.Context, _, _ int) ([]domain.Account, error) {
	var out []domain.Account
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out, nil
}

func newTestService() (*AccountService, *memoryAccountRepository, *fakeAuditStore) {
	store := &fakeAuditStore{}
	audit := NewAuditService(tracker.ReflectProvider{}, store, nil)
	changeTracker := tracker.New(tracker.ReflectProvider{}, audit)
	repo := newMemoryAccountRepository(changeTracker)
	return NewAccountService(repo, audit), repo, store
}

func eventsOfType(events []domain.AuditEvent, eventType string) []domain.AuditEvent {
	var out []domain.AuditEvent
	for _, e := range events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestCreateAccountValidation(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService()
	ctx := context.Background()

	tcs := []struct {
		name string
		req  domain.CreateAccountRequest
	}{
		{name: "missing email", req: domain.CreateAccountRequest{Name: "Alice"}},
		{name: "missing name", req: domain.CreateAccountRequest{Email: "a@x.com"}},
		{name: "invalid email", req: domain.CreateAccountRequest{Email: "not-an-email", Name: "Alice"}},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateAccount(ctx, tc.req)
			require.Error(t, err)
		})
	}
}

func TestCreateAccountEmitsCreatedEvent(t *testing.T) {
	t.Parallel()

	svc, _, store := newTestService()
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, domain.CreateAccountRequest{Email: "a@x.com", Name: "Alice"})
	require.NoError(t, err)
	require.NotEmpty(t, account.ID)
	assert.Equal(t, domain.StatusActive, account.Status)

	created := eventsOfType(store.events, domain.EventAccountCreated)
	require.Len(t, created, 1)
	assert.Equal(t, account.ID, created[0].EntityID)
}

func TestUpdateAccountEmitsFieldChanges(t *testing.T) {
	t.Parallel()

	svc, _, store := newTestService()
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, domain.CreateAccountRequest{Email: "a@x.com", Name: "Alice"})
	require.NoError(t, err)

	newEmail := "b@x.com"
	updated, err := svc.UpdateAccount(ctx, account.ID, domain.UpdateAccountRequest{Email: &newEmail})
	require.NoError(t, err)
	assert.Equal(t, newEmail, updated.Email)

	changes := eventsOfType(store.events, domain.EventAccountFieldChanged)
	require.Len(t, changes, 1)
	assert.Equal(t, "email", changes[0].Payload["field"])
	assert.Equal(t, "a@x.com", changes[0].Payload["old_value"])
	assert.Equal(t, "b@x.com", changes[0].Payload["new_value"])
}

func TestUpdateAccountWithoutChangesEmitsNothing(t *testing.T) {
	t.Parallel()

	svc, _, store := newTestService()
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, domain.CreateAccountRequest{Email: "a@x.com", Name: "Alice"})
	require.NoError(t, err)

	sameEmail := account.Email
	_, err = svc.UpdateAccount(ctx, account.ID, domain.UpdateAccountRequest{Email: &sameEmail})
	require.NoError(t, err)

	assert.Empty(t, eventsOfType(store.events, domain.EventAccountFieldChanged))
}

func TestUpdateAccountMultipleFields(t *testing.T) {
	t.Parallel()

	svc, _, store := newTestService()
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, domain.CreateAccountRequest{Email: "a@x.com", Name: "Alice"})
	require.NoError(t, err)

	newEmail := "b@x.com"
	newName := "Bob"
	newBalance := int64(500)
	_, err = svc.UpdateAccount(ctx, account.ID, domain.UpdateAccountRequest{
		Email:   &newEmail,
		Name:    &newName,
		Balance: &newBalance,
	})
	require.NoError(t, err)

	changes := eventsOfType(store.events, domain.EventAccountFieldChanged)
	require.Len(t, changes, 3)

	// Emission order across fields is unspecified; each changed field must
	// appear exactly once.
	seen := map[string]int{}
	for _, e := range changes {
		field, _ := e.Payload["field"].(string)
		seen[field]++
	}
	assert.Equal(t, map[string]int{"email": 1, "name": 1, "balance": 1}, seen)
}

func TestUpdateAccountInvalidStatus(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService()
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, domain.CreateAccountRequest{Email: "a@x.com", Name: "Alice"})
	require.NoError(t, err)

	bad := "frozen"
	_, err = svc.UpdateAccount(ctx, account.ID, domain.UpdateAccountRequest{Status: &bad})
	require.Error(t, err)
}

func TestSuspendAccountTracksTimestampChange(t *testing.T) {
	t.Parallel()

	svc, _, store := newTestService()
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, domain.CreateAccountRequest{Email: "a@x.com", Name: "Alice"})
	require.NoError(t, err)

	suspended, err := svc.SuspendAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuspended, suspended.Status)
	require.NotNil(t, suspended.SuspendedAt)

	changes := eventsOfType(store.events, domain.EventAccountFieldChanged)
	seen := map[string]bool{}
	for _, e := range changes {
		field, _ := e.Payload["field"].(string)
		seen[field] = true
	}
	assert.True(t, seen["status"])
	assert.True(t, seen["suspended_at"], "nil to value must be detected as a change")
}

func TestCloseAccountEmitsClosedEvent(t *testing.T) {
	t.Parallel()

	svc, _, store := newTestService()
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, domain.CreateAccountRequest{Email: "a@x.com", Name: "Alice"})
	require.NoError(t, err)

	closed, err := svc.CloseAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)

	require.Len(t, eventsOfType(store.events, domain.EventAccountClosed), 1)
	statusChanges := eventsOfType(store.events, domain.EventAccountFieldChanged)
	require.Len(t, statusChanges, 1)
	assert.Equal(t, "status", statusChanges[0].Payload["field"])
}

func TestUpdateMissingAccount(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService()
	ctx := context.Background()

	email := "a@x.com"
	_, err := svc.UpdateAccount(ctx, "no-such-id", domain.UpdateAccountRequest{Email: &email})
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}
