package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nordrail/storefront-api/internal/federated"
	"github.com/nordrail/storefront-api/internal/models"
)

func TestIdentityLinkerCreatesFederatedAccount(t *testing.T) {
	accounts := newMemoryAccountStore()
	linker := NewIdentityLinker(accounts, zap.NewNop())

	account, err := linker.Resolve(context.Background(), &federated.Identity{SubjectID: "ext-1", Email: "bob@example.com", DisplayName: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", account.Email)
	assert.Equal(t, "Bob", account.Name)
	assert.False(t, account.HasPassword())
	require.NotNil(t, account.FederatedID)
	assert.Equal(t, "ext-1", *account.FederatedID)
}

func TestIdentityLinkerPrefersSubjectMatch(t *testing.T) {
	accounts := newMemoryAccountStore()
	linker := NewIdentityLinker(accounts, zap.NewNop())

	first, err := linker.Resolve(context.Background(), &federated.Identity{SubjectID: "ext-1", Email: "bob@example.com", DisplayName: "Bob"})
	require.NoError(t, err)

	// Same subject with a changed asserted email still resolves to the
	// already-linked account.
	second, err := linker.Resolve(context.Background(), &federated.Identity{SubjectID: "ext-1", Email: "bob@other.example", DisplayName: "Bobby"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "bob@example.com", second.Email)
}

func TestIdentityLinkerAttachesToEmailMatch(t *testing.T) {
	accounts := newMemoryAccountStore()
	linker := NewIdentityLinker(accounts, zap.NewNop())

	hash, err := HashPassword("pw1234")
	require.NoError(t, err)
	existing, err := models.NewAccount("alice@example.com", "Alice", &hash, nil)
	require.NoError(t, err)
	require.NoError(t, accounts.Create(context.Background(), existing))

	resolved, err := linker.Resolve(context.Background(), &federated.Identity{SubjectID: "ext-9", Email: "alice@example.com", DisplayName: "Alice G"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, resolved.ID)
	require.NotNil(t, resolved.FederatedID)
	assert.Equal(t, "ext-9", *resolved.FederatedID)

	stored, err := accounts.FindByFederatedID(context.Background(), "ext-9")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, stored.ID)
	assert.True(t, stored.HasPassword())
}

// lostRaceStore makes the first Create lose to a concurrent writer: the
// other request's row lands and the caller gets the unique violation.
type lostRaceStore struct {
	*memoryAccountStore
	once sync.Once
}

func (s *lostRaceStore) Create(ctx context.Context, account *models.Account) error {
	var lost bool
	s.once.Do(func() {
		other := *account
		other.ID = "winner-" + account.ID
		_ = s.memoryAccountStore.Create(ctx, &other)
		lost = true
	})
	if lost {
		return uniqueViolation()
	}
	return s.memoryAccountStore.Create(ctx, account)
}

func TestIdentityLinkerRetriesLostCreationRace(t *testing.T) {
	store := &lostRaceStore{memoryAccountStore: newMemoryAccountStore()}
	linker := NewIdentityLinker(store, zap.NewNop())

	account, err := linker.Resolve(context.Background(), &federated.Identity{SubjectID: "ext-1", Email: "bob@example.com", DisplayName: "Bob"})
	require.NoError(t, err)
	assert.Contains(t, account.ID, "winner-")

	// Exactly one account exists for the identity.
	assert.Len(t, store.byID, 1)
}

func TestIdentityLinkerConcurrentNewEmail(t *testing.T) {
	accounts := newMemoryAccountStore()
	linker := NewIdentityLinker(accounts, zap.NewNop())

	identity := &federated.Identity{SubjectID: "ext-1", Email: "bob@example.com", DisplayName: "Bob"}

	const callers = 4
	results := make(chan string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			account, err := linker.Resolve(context.Background(), identity)
			if assert.NoError(t, err) {
				results <- account.ID
			}
		}()
	}
	wg.Wait()
	close(results)

	ids := make(map[string]struct{})
	for id := range results {
		ids[id] = struct{}{}
	}
	assert.Len(t, ids, 1)
	assert.Len(t, accounts.byID, 1)
}
