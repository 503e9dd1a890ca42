package ingest

import (
	"context"
	"errors"
	"finsync/src/models"
	"sync"
	"time"
)

var errNotFound = errors.New("not found")

type fakeItems struct {
	mu     sync.Mutex
	nextID int64
	rows   []*models.Item
	links  int
}

func (f *fakeItems) add(item models.Item) models.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	item.ID = f.nextID
	f.rows = append(f.rows, &item)
	return item
}

func (f *fakeItems) Get(ctx context.Context, id int64) (*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.rows {
		if it.ID == id {
			c := *it
			return &c, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeItems) filter(env string, keep func(*models.Item) bool) []models.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Item
	for _, it := range f.rows {
		if it.Environment == env && keep(it) {
			out = append(out, *it)
		}
	}
	return out
}

func (f *fakeItems) List(ctx context.Context, env string) ([]models.Item, error) {
	return f.filter(env, func(*models.Item) bool { return true }), nil
}

func (f *fakeItems) ListForBalances(ctx context.Context, env string) ([]models.Item, error) {
	return f.filter(env, func(it *models.Item) bool { return it.Active && it.BalancesEnabled }), nil
}

func (f *fakeItems) ListForTransactions(ctx context.Context, env string) ([]models.Item, error) {
	return f.filter(env, func(it *models.Item) bool { return it.Active && it.TransactionsEnabled }), nil
}

func (f *fakeItems) Link(ctx context.Context, p models.LinkItemParams) (*models.Item, []int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links++

	var archived []int64
	now := time.Now()
	for _, it := range f.rows {
		if it.Label == p.Label && it.Environment == p.Environment && it.ItemID != p.ItemID && it.Active {
			it.Active = false
			it.ArchivedAt = &now
			archived = append(archived, it.ID)
		}
	}

	var target *models.Item
	for _, it := range f.rows {
		if it.ItemID == p.ItemID {
			target = it
		}
	}
	if target == nil {
		f.nextID++
		target = &models.Item{ID: f.nextID, CreatedAt: now}
		f.rows = append(f.rows, target)
	}
	target.Label = p.Label
	target.Environment = p.Environment
	target.InstitutionID = p.InstitutionID
	target.InstitutionName = p.InstitutionName
	target.ItemID = p.ItemID
	target.CredentialHandle = p.CredentialHandle
	target.TransactionsEnabled = p.TransactionsEnabled
	target.BalancesEnabled = p.BalancesEnabled
	target.Active = true
	target.ArchivedAt = nil

	c := *target
	return &c, archived, nil
}

func (f *fakeItems) SetCapabilities(ctx context.Context, id int64, transactions, balances *bool) (*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.rows {
		if it.ID == id {
			if transactions != nil {
				it.TransactionsEnabled = *transactions
			}
			if balances != nil {
				it.BalancesEnabled = *balances
			}
			c := *it
			return &c, nil
		}
	}
	return nil, errNotFound
}

type accountKey struct {
	itemID    int64
	accountID string
}

type fakeAccounts struct {
	mu     sync.Mutex
	nextID int64
	rows   map[accountKey]*models.Account
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{rows: make(map[accountKey]*models.Account)}
}

func coalesce(v *bool, fallback bool) bool {
	if v != nil {
		return *v
	}
	return fallback
}

func (f *fakeAccounts) Upsert(ctx context.Context, p models.UpsertAccountParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := accountKey{p.ItemID, p.AccountID}
	a, ok := f.rows[k]
	if !ok {
		f.nextID++
		a = &models.Account{ID: f.nextID, ItemID: p.ItemID, AccountID: p.AccountID, IncludeInApp: true, Active: true}
		f.rows[k] = a
	}
	m := p.Metadata
	a.Name, a.OfficialName, a.Type, a.Subtype, a.Mask, a.Currency, a.Raw = m.Name, m.OfficialName, m.Type, m.Subtype, m.Mask, m.Currency, m.Raw
	a.IncludeInApp = coalesce(p.IncludeInApp, a.IncludeInApp)
	a.Active = coalesce(p.Active, a.Active)
	return a.ID, nil
}

func (f *fakeAccounts) ListIncluded(ctx context.Context, itemID int64) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int64)
	for k, a := range f.rows {
		if k.itemID == itemID && a.IncludeInApp && a.Active {
			out[k.accountID] = a.ID
		}
	}
	return out, nil
}

func (f *fakeAccounts) ListByItem(ctx context.Context, itemID int64) ([]models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Account
	for k, a := range f.rows {
		if k.itemID == itemID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAccounts) SetInclusion(ctx context.Context, id int64, includeInApp, active *bool) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.ID == id {
			a.IncludeInApp = coalesce(includeInApp, a.IncludeInApp)
			a.Active = coalesce(active, a.Active)
			c := *a
			return &c, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeAccounts) byExternal(itemID int64, accountID string) *models.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[accountKey{itemID, accountID}]
	if !ok {
		return nil
	}
	c := *a
	return &c
}

type snapshotKey struct {
	runID     int64
	accountID int64
}

type fakeBalances struct {
	mu     sync.Mutex
	rows   map[snapshotKey]models.BalanceSnapshot
	writes int
}

func newFakeBalances() *fakeBalances {
	return &fakeBalances{rows: make(map[snapshotKey]models.BalanceSnapshot)}
}

func (f *fakeBalances) UpsertSnapshot(ctx context.Context, s models.BalanceSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	f.rows[snapshotKey{s.RunID, s.AccountID}] = s
	return nil
}

type fakeCursors struct {
	mu      sync.Mutex
	cursors map[int64]string
	history []string
	failOn  string
}

func newFakeCursors() *fakeCursors {
	return &fakeCursors{cursors: make(map[int64]string)}
}

func (f *fakeCursors) GetSyncCursor(ctx context.Context, itemID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursors[itemID], nil
}

func (f *fakeCursors) UpdateSyncCursor(ctx context.Context, itemID int64, cursor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && cursor == f.failOn {
		return errors.New("connection reset")
	}
	f.cursors[itemID] = cursor
	f.history = append(f.history, cursor)
	return nil
}

type fakeTransactions struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[string]*models.Transaction
	inserts int
}

func newFakeTransactions() *fakeTransactions {
	return &fakeTransactions{rows: make(map[string]*models.Transaction)}
}

func (f *fakeTransactions) Upsert(ctx context.Context, runID, accountID int64, tx models.ProviderTransaction) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, exists := f.rows[tx.TransactionID]
	if !exists {
		f.nextID++
		f.inserts++
		t = &models.Transaction{ID: f.nextID, TransactionID: tx.TransactionID, FirstSeenRunID: runID, SyncStatus: models.SyncStatusAdded}
		f.rows[tx.TransactionID] = t
	} else {
		t.SyncStatus = models.SyncStatusModified
	}
	t.AccountID = accountID
	t.Name = tx.Name
	t.MerchantName = tx.MerchantName
	t.Amount = tx.Amount
	t.Currency = tx.Currency
	t.Date = nil
	if !tx.Date.IsZero() {
		d := tx.Date
		t.Date = &d
	}
	t.Pending = tx.Pending
	t.Category = tx.Category
	t.Removed = false
	t.RemovedAt = nil
	t.LastSeenRunID = runID
	return !exists, nil
}

func (f *fakeTransactions) MarkRemoved(ctx context.Context, runID int64, transactionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[transactionID]
	if !ok {
		return false, nil
	}
	if !t.Removed {
		now := time.Now()
		t.RemovedAt = &now
	}
	t.Removed = true
	t.SyncStatus = models.SyncStatusRemoved
	t.LastSeenRunID = runID
	return true, nil
}

func (f *fakeTransactions) get(id string) *models.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok {
		return nil
	}
	c := *t
	return &c
}

func (f *fakeTransactions) snapshot() map[string]models.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]models.Transaction, len(f.rows))
	for k, v := range f.rows {
		c := *v
		if v.RemovedAt != nil {
			at := *v.RemovedAt
			c.RemovedAt = &at
		}
		out[k] = c
	}
	return out
}

type fakeRuns struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.Run
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{rows: make(map[int64]*models.Run)}
}

func (f *fakeRuns) Create(ctx context.Context, runType, env string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.rows[f.nextID] = &models.Run{ID: f.nextID, Type: runType, Environment: env, Status: models.RunStatusRunning, StartedAt: time.Now()}
	return f.nextID, nil
}

func (f *fakeRuns) Finish(ctx context.Context, id int64, status models.RunStatus, errText string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || r.Status != models.RunStatusRunning {
		return false, nil
	}
	now := time.Now()
	r.Status = status
	r.Error = errText
	r.FinishedAt = &now
	return true, nil
}

func (f *fakeRuns) Get(ctx context.Context, id int64) (*models.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, errNotFound
	}
	c := *r
	return &c, nil
}

// fakeProvider serves scripted pages keyed by the cursor they answer.
type fakeProvider struct {
	mu       sync.Mutex
	balances map[string][]models.ProviderAccount
	pages    map[string]*models.SyncPage
	errOn    map[string]error
	panicOn  string
	calls    []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		balances: make(map[string][]models.ProviderAccount),
		pages:    make(map[string]*models.SyncPage),
		errOn:    make(map[string]error),
	}
}

func (p *fakeProvider) GetBalances(ctx context.Context, accessToken string) ([]models.ProviderAccount, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errOn["balances:"+accessToken]; err != nil {
		return nil, err
	}
	return p.balances[accessToken], nil
}

func (p *fakeProvider) SyncTransactions(ctx context.Context, accessToken, cursor string) (*models.SyncPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, cursor)
	if p.panicOn != "" && cursor == p.panicOn {
		panic("provider exploded")
	}
	if err := p.errOn[cursor]; err != nil {
		return nil, err
	}
	page, ok := p.pages[cursor]
	if !ok {
		return &models.SyncPage{NextCursor: cursor}, nil
	}
	return page, nil
}

func (p *fakeProvider) resetCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

// fakeCreds hands back the stored handle as the credential.
type fakeCreds struct {
	err error
}

func (c fakeCreds) Resolve(ctx context.Context, item models.Item) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return item.CredentialHandle, nil
}

type fakeSealer struct {
	invalidated []int64
}

func (s *fakeSealer) Seal(token string) (string, error) {
	return "sealed:" + token, nil
}

func (s *fakeSealer) Invalidate(itemIDs ...int64) {
	s.invalidated = append(s.invalidated, itemIDs...)
}
