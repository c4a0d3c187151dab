package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"referral-rewards-api/internal/domain/model"
	pgrepo "referral-rewards-api/internal/repo/postgres"
)

// memStore implements every settlement store interface over maps. Its
// WithTx serializes callers and restores the previous state when the
// callback fails, mirroring the commit/rollback behavior of the real
// transaction manager.
type memStore struct {
	mu        sync.Mutex
	purchases map[uuid.UUID]pgrepo.PurchaseRecord
	users     map[int64]model.User
	rewards   map[string]int64
	balances  map[int64]int64

	creditErr error
	grantErr  error
}

func newMemStore() *memStore {
	return &memStore{
		purchases: make(map[uuid.UUID]pgrepo.PurchaseRecord),
		users:     make(map[int64]model.User),
		rewards:   make(map[string]int64),
		balances:  make(map[int64]int64),
	}
}

func (m *memStore) addUser(id int64, referrerID *int64, active bool) {
	m.users[id] = model.User{ID: id, ReferrerID: referrerID, IsActive: active}
}

func (m *memStore) addPurchase(id uuid.UUID, userID, amount int64, status string) {
	m.purchases[id] = pgrepo.PurchaseRecord{
		ID:        id,
		UserID:    userID,
		Amount:    amount,
		Status:    status,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func (m *memStore) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rewardsBackup := make(map[string]int64, len(m.rewards))
	for k, v := range m.rewards {
		rewardsBackup[k] = v
	}
	balancesBackup := make(map[int64]int64, len(m.balances))
	for k, v := range m.balances {
		balancesBackup[k] = v
	}

	if err := fn(ctx, nil); err != nil {
		m.rewards = rewardsBackup
		m.balances = balancesBackup
		return err
	}
	return nil
}

func (m *memStore) LockForSettlement(_ context.Context, _ pgx.Tx, purchaseID uuid.UUID) (pgrepo.PurchaseRecord, error) {
	record, ok := m.purchases[purchaseID]
	if !ok {
		return pgrepo.PurchaseRecord{}, pgrepo.ErrPurchaseNotFound
	}
	return record, nil
}

func (m *memStore) FindByID(_ context.Context, _ pgx.Tx, userID int64) (model.User, error) {
	user, ok := m.users[userID]
	if !ok {
		return model.User{}, pgrepo.ErrUserNotFound
	}
	return user, nil
}

func (m *memStore) GrantIfAbsent(_ context.Context, _ pgx.Tx, purchaseID uuid.UUID, _ int64, beneficiaryUserID int64, level int, amount int64) (bool, error) {
	if m.grantErr != nil {
		return false, m.grantErr
	}
	key := fmt.Sprintf("%s|%d|%d", purchaseID, beneficiaryUserID, level)
	if _, exists := m.rewards[key]; exists {
		return false, nil
	}
	m.rewards[key] = amount
	return true, nil
}

func (m *memStore) Credit(_ context.Context, _ pgx.Tx, userID, delta int64) error {
	if m.creditErr != nil {
		return m.creditErr
	}
	m.balances[userID] += delta
	return nil
}

func newTestService(store *memStore) *Service {
	return NewService(Dependencies{
		Tx:        store,
		Purchases: store,
		Users:     store,
		Rewards:   store,
		Balances:  store,
	})
}

func int64Ptr(v int64) *int64 { return &v }

func TestSettleTwoLevelPayout(t *testing.T) {
	store := newMemStore()
	// buyer 1 <- referrer 2 <- referrer 3, all active
	store.addUser(3, nil, true)
	store.addUser(2, int64Ptr(3), true)
	store.addUser(1, int64Ptr(2), true)
	purchaseID := uuid.New()
	store.addPurchase(purchaseID, 1, 1000, "captured")

	svc := newTestService(store)
	if err := svc.Settle(context.Background(), purchaseID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if len(store.rewards) != 2 {
		t.Fatalf("expected 2 reward grants, got %d: %+v", len(store.rewards), store.rewards)
	}
	if got := store.balances[2]; got != 100 {
		t.Fatalf("level-1 balance: got %d want 100", got)
	}
	if got := store.balances[3]; got != 50 {
		t.Fatalf("level-2 balance: got %d want 50", got)
	}
}

func TestSettleIsIdempotentSequentially(t *testing.T) {
	store := newMemStore()
	store.addUser(3, nil, true)
	store.addUser(2, int64Ptr(3), true)
	store.addUser(1, int64Ptr(2), true)
	purchaseID := uuid.New()
	store.addPurchase(purchaseID, 1, 1000, "captured")

	svc := newTestService(store)
	for i := 0; i < 3; i++ {
		if err := svc.Settle(context.Background(), purchaseID); err != nil {
			t.Fatalf("settle #%d: %v", i+1, err)
		}
	}

	if len(store.rewards) != 2 {
		t.Fatalf("expected 2 reward grants after repeated settles, got %d", len(store.rewards))
	}
	if store.balances[2] != 100 || store.balances[3] != 50 {
		t.Fatalf("balances changed on repeat settle: %+v", store.balances)
	}
}

func TestSettleIsIdempotentConcurrently(t *testing.T) {
	store := newMemStore()
	store.addUser(3, nil, true)
	store.addUser(2, int64Ptr(3), true)
	store.addUser(1, int64Ptr(2), true)
	purchaseID := uuid.New()
	store.addPurchase(purchaseID, 1, 1000, "captured")

	svc := newTestService(store)

	const settlers = 16
	var wg sync.WaitGroup
	errs := make(chan error, settlers)
	for i := 0; i < settlers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Settle(context.Background(), purchaseID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent settle: %v", err)
		}
	}

	if len(store.rewards) != 2 {
		t.Fatalf("expected 2 reward grants after concurrent settles, got %d", len(store.rewards))
	}
	if store.balances[2] != 100 || store.balances[3] != 50 {
		t.Fatalf("unexpected balances after concurrent settles: %+v", store.balances)
	}
}

func TestSettleSkipsNonCapturedStatuses(t *testing.T) {
	for _, status := range []string{"authorized", "refunded", "voided"} {
		t.Run(status, func(t *testing.T) {
			store := newMemStore()
			store.addUser(2, nil, true)
			store.addUser(1, int64Ptr(2), true)
			purchaseID := uuid.New()
			store.addPurchase(purchaseID, 1, 1000, status)

			svc := newTestService(store)
			if err := svc.Settle(context.Background(), purchaseID); err != nil {
				t.Fatalf("settle %s purchase: %v", status, err)
			}
			if len(store.rewards) != 0 || len(store.balances) != 0 {
				t.Fatalf("expected no-op for %s purchase, got rewards=%+v balances=%+v", status, store.rewards, store.balances)
			}
		})
	}
}

func TestSettleUnknownPurchase(t *testing.T) {
	svc := newTestService(newMemStore())

	err := svc.Settle(context.Background(), uuid.New())
	if !errors.Is(err, ErrPurchaseNotFound) {
		t.Fatalf("expected ErrPurchaseNotFound, got %v", err)
	}
}

func TestSettleInactiveLevel1ShortCircuitsChain(t *testing.T) {
	store := newMemStore()
	// level-2 candidate is active but level-1 is not
	store.addUser(3, nil, true)
	store.addUser(2, int64Ptr(3), false)
	store.addUser(1, int64Ptr(2), true)
	purchaseID := uuid.New()
	store.addPurchase(purchaseID, 1, 1000, "captured")

	svc := newTestService(store)
	if err := svc.Settle(context.Background(), purchaseID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if len(store.rewards) != 0 || len(store.balances) != 0 {
		t.Fatalf("inactive level-1 must yield no rewards at all, got rewards=%+v balances=%+v", store.rewards, store.balances)
	}
}

func TestSettleInactiveLevel2(t *testing.T) {
	store := newMemStore()
	store.addUser(3, nil, false)
	store.addUser(2, int64Ptr(3), true)
	store.addUser(1, int64Ptr(2), true)
	purchaseID := uuid.New()
	store.addPurchase(purchaseID, 1, 1000, "captured")

	svc := newTestService(store)
	if err := svc.Settle(context.Background(), purchaseID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if len(store.rewards) != 1 {
		t.Fatalf("expected only the level-1 grant, got %+v", store.rewards)
	}
	if store.balances[2] != 100 {
		t.Fatalf("level-1 balance: got %d want 100", store.balances[2])
	}
	if _, credited := store.balances[3]; credited {
		t.Fatalf("inactive level-2 referrer must not be credited")
	}
}

func TestSettleBuyerWithoutReferrer(t *testing.T) {
	store := newMemStore()
	store.addUser(1, nil, true)
	purchaseID := uuid.New()
	store.addPurchase(purchaseID, 1, 1000, "captured")

	svc := newTestService(store)
	if err := svc.Settle(context.Background(), purchaseID); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(store.rewards) != 0 {
		t.Fatalf("expected no rewards without a referrer, got %+v", store.rewards)
	}
}

func TestSettleBuyerMissingFromUsers(t *testing.T) {
	store := newMemStore()
	purchaseID := uuid.New()
	store.addPurchase(purchaseID, 42, 1000, "captured")

	svc := newTestService(store)
	if err := svc.Settle(context.Background(), purchaseID); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(store.rewards) != 0 {
		t.Fatalf("expected no rewards for unknown buyer, got %+v", store.rewards)
	}
}

func TestSettleSkipsZeroAmountRewards(t *testing.T) {
	store := newMemStore()
	store.addUser(3, nil, true)
	store.addUser(2, int64Ptr(3), true)
	store.addUser(1, int64Ptr(2), true)
	purchaseID := uuid.New()
	// 10% of 9 and 5% of 9 both floor to zero.
	store.addPurchase(purchaseID, 1, 9, "captured")

	svc := newTestService(store)
	if err := svc.Settle(context.Background(), purchaseID); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(store.rewards) != 0 || len(store.balances) != 0 {
		t.Fatalf("zero-amount rewards must not be granted, got rewards=%+v balances=%+v", store.rewards, store.balances)
	}
}

func TestSettleLevel2FloorsSeparately(t *testing.T) {
	store := newMemStore()
	store.addUser(3, nil, true)
	store.addUser(2, int64Ptr(3), true)
	store.addUser(1, int64Ptr(2), true)
	purchaseID := uuid.New()
	// 10% of 19 = 1, 5% of 19 = 0: only level 1 pays out.
	store.addPurchase(purchaseID, 1, 19, "captured")

	svc := newTestService(store)
	if err := svc.Settle(context.Background(), purchaseID); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(store.rewards) != 1 {
		t.Fatalf("expected only the level-1 grant, got %+v", store.rewards)
	}
	if store.balances[2] != 1 {
		t.Fatalf("level-1 balance: got %d want 1", store.balances[2])
	}
}

func TestSettleAbortsWithoutPartialState(t *testing.T) {
	store := newMemStore()
	store.addUser(3, nil, true)
	store.addUser(2, int64Ptr(3), true)
	store.addUser(1, int64Ptr(2), true)
	purchaseID := uuid.New()
	store.addPurchase(purchaseID, 1, 1000, "captured")
	store.creditErr = errors.New("connection reset")

	svc := newTestService(store)
	if err := svc.Settle(context.Background(), purchaseID); err == nil {
		t.Fatalf("expected settle to fail when balance credit fails")
	}

	if len(store.rewards) != 0 || len(store.balances) != 0 {
		t.Fatalf("aborted settle must leave no partial state, got rewards=%+v balances=%+v", store.rewards, store.balances)
	}

	// A retry after the transient failure pays out normally.
	store.creditErr = nil
	if err := svc.Settle(context.Background(), purchaseID); err != nil {
		t.Fatalf("retry settle: %v", err)
	}
	if store.balances[2] != 100 || store.balances[3] != 50 {
		t.Fatalf("unexpected balances after retry: %+v", store.balances)
	}
}

func TestSettleSurfacesGrantFailure(t *testing.T) {
	store := newMemStore()
	store.addUser(2, nil, true)
	store.addUser(1, int64Ptr(2), true)
	purchaseID := uuid.New()
	store.addPurchase(purchaseID, 1, 1000, "captured")
	store.grantErr = errors.New("insert failed")

	svc := newTestService(store)
	if err := svc.Settle(context.Background(), purchaseID); err == nil {
		t.Fatalf("expected settle to fail when the grant insert fails")
	}
	if len(store.balances) != 0 {
		t.Fatalf("failed grant must not credit anyone: %+v", store.balances)
	}
}

func TestSettleShortReferralCycle(t *testing.T) {
	// The data model does not forbid cycles. The walk is bounded at two
	// levels, so a two-user cycle makes the buyer their own level-2
	// beneficiary rather than looping.
	store := newMemStore()
	store.addUser(1, int64Ptr(2), true)
	store.addUser(2, int64Ptr(1), true)
	purchaseID := uuid.New()
	store.addPurchase(purchaseID, 1, 1000, "captured")

	svc := newTestService(store)
	if err := svc.Settle(context.Background(), purchaseID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if len(store.rewards) != 2 {
		t.Fatalf("expected 2 grants in a short cycle, got %+v", store.rewards)
	}
	if store.balances[2] != 100 {
		t.Fatalf("level-1 balance: got %d want 100", store.balances[2])
	}
	if store.balances[1] != 50 {
		t.Fatalf("level-2 (buyer) balance: got %d want 50", store.balances[1])
	}
}
