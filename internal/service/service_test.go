package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/liquiditysense/lsmm/internal/domain"
	"github.com/liquiditysense/lsmm/internal/engine"
	"github.com/liquiditysense/lsmm/internal/fixedpoint"
)

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type memStore struct {
	mu          sync.Mutex
	markets     map[string]domain.Market
	positions   map[string]map[common.Address]domain.Position
	transfers   []domain.Transfer
	resolutions map[string]domain.Resolution
	claims      []domain.Claim
	failCommits bool
}

func newMemStore() *memStore {
	return &memStore{
		markets:     make(map[string]domain.Market),
		positions:   make(map[string]map[common.Address]domain.Position),
		resolutions: make(map[string]domain.Resolution),
	}
}

func (m *memStore) Create(_ context.Context, mk domain.Market) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets[mk.ID] = mk
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return mk, nil
}

func (m *memStore) List(_ context.Context, _ domain.ListOpts) ([]domain.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Market, 0, len(m.markets))
	for _, mk := range m.markets {
		out = append(out, mk)
	}
	return out, nil
}

func (m *memStore) ListResolvedBefore(_ context.Context, before time.Time) ([]domain.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Market
	for _, mk := range m.markets {
		if mk.Status == domain.MarketStatusResolved && mk.ResolvedAt != nil && mk.ResolvedAt.Before(before) {
			out = append(out, mk)
		}
	}
	return out, nil
}

func (m *memStore) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.markets)), nil
}

func (m *memStore) Get(_ context.Context, marketID string, account common.Address) (domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[marketID][account]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *memStore) ListByMarket(_ context.Context, marketID string) ([]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Position
	for _, p := range m.positions[marketID] {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) ListByMarketTransfers(marketID string) []domain.Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Transfer
	for _, t := range m.transfers {
		if t.MarketID == marketID {
			out = append(out, t)
		}
	}
	return out
}

func (m *memStore) CommitTrade(_ context.Context, mk domain.Market, p domain.Position, t domain.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCommits {
		return errors.New("commit failed")
	}
	m.markets[mk.ID] = mk
	m.setPosition(p)
	m.transfers = append(m.transfers, t)
	return nil
}

func (m *memStore) CommitResolution(_ context.Context, mk domain.Market, r domain.Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCommits {
		return errors.New("commit failed")
	}
	m.markets[mk.ID] = mk
	m.resolutions[r.MarketID] = r
	return nil
}

func (m *memStore) CommitClaim(_ context.Context, mk domain.Market, p domain.Position, c domain.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCommits {
		return errors.New("commit failed")
	}
	m.markets[mk.ID] = mk
	m.setPosition(p)
	m.claims = append(m.claims, c)
	return nil
}

func (m *memStore) setPosition(p domain.Position) {
	if m.positions[p.MarketID] == nil {
		m.positions[p.MarketID] = make(map[common.Address]domain.Position)
	}
	m.positions[p.MarketID][p.Account] = p
}

type memTransferStore struct{ store *memStore }

func (s memTransferStore) ListByMarket(_ context.Context, marketID string, _ domain.ListOpts) ([]domain.Transfer, error) {
	return s.store.ListByMarketTransfers(marketID), nil
}

func (s memTransferStore) ListByAccount(_ context.Context, account common.Address, _ domain.ListOpts) ([]domain.Transfer, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	var out []domain.Transfer
	for _, t := range s.store.transfers {
		if t.Account == account {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s memTransferStore) DeleteByMarket(_ context.Context, marketID string) (int64, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	var kept []domain.Transfer
	var n int64
	for _, t := range s.store.transfers {
		if t.MarketID == marketID {
			n++
			continue
		}
		kept = append(kept, t)
	}
	s.store.transfers = kept
	return n, nil
}

type memResolutionStore struct{ store *memStore }

func (s memResolutionStore) GetByMarket(_ context.Context, marketID string) (domain.Resolution, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	r, ok := s.store.resolutions[marketID]
	if !ok {
		return domain.Resolution{}, domain.ErrNotFound
	}
	return r, nil
}

type memPriceCache struct {
	mu    sync.Mutex
	books map[string]domain.PriceBook

	// alwaysMiss forces every Get onto the engine fallback path.
	alwaysMiss bool
}

func newMemPriceCache() *memPriceCache {
	return &memPriceCache{books: make(map[string]domain.PriceBook)}
}

func (c *memPriceCache) Set(_ context.Context, book domain.PriceBook) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.books[book.MarketID] = book
	return nil
}

func (c *memPriceCache) Get(_ context.Context, marketID string) (domain.PriceBook, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.alwaysMiss {
		return domain.PriceBook{}, domain.ErrNotFound
	}
	b, ok := c.books[marketID]
	if !ok {
		return domain.PriceBook{}, domain.ErrNotFound
	}
	return b, nil
}

func (c *memPriceCache) Invalidate(_ context.Context, marketID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.books, marketID)
	return nil
}

type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocks() *memLocks { return &memLocks{held: make(map[string]bool)} }

func (l *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

type memBus struct {
	mu       sync.Mutex
	messages []domain.BusMessage
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, domain.BusMessage{Channel: channel, Payload: payload})
	return nil
}

func (b *memBus) Subscribe(_ context.Context, _ ...string) (<-chan domain.BusMessage, error) {
	ch := make(chan domain.BusMessage)
	close(ch)
	return ch, nil
}

func (b *memBus) onChannel(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, m := range b.messages {
		if m.Channel == channel {
			n++
		}
	}
	return n
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type fakeSigner struct{ addr common.Address }

func (f fakeSigner) SignResolution(string, int, time.Time) (string, error) {
	return "0xsigned", nil
}

func (f fakeSigner) Address() common.Address { return f.addr }

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	svc   *MarketService
	store *memStore
	cache *memPriceCache
	bus   *memBus
	audit *memAudit
}

var (
	testOwner = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testAlice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	cache := newMemPriceCache()
	bus := &memBus{}
	audit := &memAudit{}

	svc := NewMarketService(
		store,
		store,
		memTransferStore{store},
		memResolutionStore{store},
		store,
		cache,
		newMemLocks(),
		bus,
		audit,
		fakeSigner{addr: testOwner},
		nil,
		slog.New(slog.DiscardHandler),
	)
	return &fixture{svc: svc, store: store, cache: cache, bus: bus, audit: audit}
}

func dec(t *testing.T, s string) *uint256.Int {
	t.Helper()
	v, err := fixedpoint.FromDecimal(s)
	require.NoError(t, err)
	return v
}

func (f *fixture) createMarket(t *testing.T, n int, b0 string) domain.MarketInfo {
	t.Helper()
	b := dec(t, b0)
	funding, err := engine.RequiredFunding(n, b)
	require.NoError(t, err)

	info, err := f.svc.CreateMarket(context.Background(), CreateParams{
		NumOutcomes: n,
		B0:          b,
		Alpha:       dec(t, "0.01"),
		Funding:     funding,
		Owner:       testOwner,
	})
	require.NoError(t, err)
	return info
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCreateMarketPersistsAndCaches(t *testing.T) {
	f := newFixture(t)
	info := f.createMarket(t, 2, "100")

	stored, err := f.store.GetByID(context.Background(), info.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MarketStatusOpen, stored.Status)
	require.Equal(t, 2, stored.NumOutcomes)

	book, err := f.cache.Get(context.Background(), info.ID)
	require.NoError(t, err)
	require.Len(t, book.Prices, 2)

	require.Contains(t, f.audit.events, "market_created")
}

func TestCreateMarketRejectsWrongFunding(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateMarket(context.Background(), CreateParams{
		NumOutcomes: 2,
		B0:          dec(t, "100"),
		Alpha:       dec(t, "0"),
		Funding:     dec(t, "1"),
		Owner:       testOwner,
	})
	require.ErrorIs(t, err, domain.ErrInvalidInitialFunding)
}

func TestTradeCommitsAndPublishes(t *testing.T) {
	f := newFixture(t)
	info := f.createMarket(t, 2, "100")
	ctx := context.Background()

	transfer, err := f.svc.Trade(ctx, info.ID, testAlice, 0, domain.SideBuy, dec(t, "10"), dec(t, "10"))
	require.NoError(t, err)
	require.Equal(t, domain.SideBuy, transfer.Side)
	require.False(t, transfer.Cost.IsZero())

	// Persisted transfer and position.
	transfers, err := f.svc.TransfersByMarket(ctx, info.ID, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, transfers, 1)

	bal, err := f.svc.Balances(ctx, info.ID, testAlice)
	require.NoError(t, err)
	require.Equal(t, dec(t, "10"), bal[0])

	// Bus fan-out: one trade event, one price event.
	require.Equal(t, 1, f.bus.onChannel(domain.ChannelTrades))
	require.Equal(t, 1, f.bus.onChannel(domain.ChannelPrices))

	// Snapshot in the store matches the engine.
	stored, err := f.store.GetByID(ctx, info.ID)
	require.NoError(t, err)
	require.Equal(t, dec(t, "10"), stored.Quantities[0])
	require.Equal(t, dec(t, "10"), stored.TotalVolume)
}

func TestTradeReloadsEngineOnCommitFailure(t *testing.T) {
	f := newFixture(t)
	info := f.createMarket(t, 2, "100")
	ctx := context.Background()

	f.store.failCommits = true
	_, err := f.svc.Trade(ctx, info.ID, testAlice, 0, domain.SideBuy, dec(t, "10"), dec(t, "10"))
	require.Error(t, err)
	f.store.failCommits = false

	// The engine was rolled back to the persisted state: no shares issued.
	q, err := f.svc.Quantities(ctx, info.ID)
	require.NoError(t, err)
	require.True(t, q[0].IsZero())

	bal, err := f.svc.Balances(ctx, info.ID, testAlice)
	require.NoError(t, err)
	require.True(t, bal[0].IsZero())
}

func TestQuoteDoesNotCommit(t *testing.T) {
	f := newFixture(t)
	info := f.createMarket(t, 2, "100")
	ctx := context.Background()

	q, err := f.svc.Quote(ctx, info.ID, 0, domain.SideBuy, dec(t, "10"))
	require.NoError(t, err)
	require.False(t, q.Cost.IsZero())

	transfers, err := f.svc.TransfersByMarket(ctx, info.ID, domain.ListOpts{})
	require.NoError(t, err)
	require.Empty(t, transfers)
}

func TestResolveSignsAndStoresReceipt(t *testing.T) {
	f := newFixture(t)
	info := f.createMarket(t, 3, "100")
	ctx := context.Background()

	res, err := f.svc.Resolve(ctx, info.ID, testOwner, 1)
	require.NoError(t, err)
	require.Equal(t, "0xsigned", res.Signature)

	stored, err := f.svc.Resolution(ctx, info.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.WinningOutcome)
	require.Equal(t, "0xsigned", stored.Signature)

	require.Equal(t, 1, f.bus.onChannel(domain.ChannelResolutions))

	// Trading is rejected after resolution.
	_, err = f.svc.Trade(ctx, info.ID, testAlice, 0, domain.SideBuy, dec(t, "1"), dec(t, "10"))
	require.ErrorIs(t, err, domain.ErrMarketResolved)
}

func TestResolveRejectsNonOwner(t *testing.T) {
	f := newFixture(t)
	info := f.createMarket(t, 2, "100")

	_, err := f.svc.Resolve(context.Background(), info.ID, testAlice, 0)
	require.ErrorIs(t, err, domain.ErrOnlyOwner)
}

func TestClaimLifecycle(t *testing.T) {
	f := newFixture(t)
	info := f.createMarket(t, 2, "100")
	ctx := context.Background()

	_, err := f.svc.Trade(ctx, info.ID, testAlice, 0, domain.SideBuy, dec(t, "10"), dec(t, "10"))
	require.NoError(t, err)

	_, err = f.svc.Resolve(ctx, info.ID, testOwner, 0)
	require.NoError(t, err)

	claim, err := f.svc.Claim(ctx, info.ID, testAlice)
	require.NoError(t, err)
	require.Equal(t, dec(t, "10"), claim.Amount)
	require.Equal(t, 1, f.bus.onChannel(domain.ChannelClaims))

	// Second claim fails; balance is already zero.
	_, err = f.svc.Claim(ctx, info.ID, testAlice)
	require.ErrorIs(t, err, domain.ErrInsufficientShares)

	// Zeroed balance persisted.
	p, err := f.store.Get(ctx, info.ID, testAlice)
	require.NoError(t, err)
	require.True(t, p.Balances[0].IsZero())
}

func TestClaimBeforeResolutionFails(t *testing.T) {
	f := newFixture(t)
	info := f.createMarket(t, 2, "100")
	_, err := f.svc.Claim(context.Background(), info.ID, testAlice)
	require.ErrorIs(t, err, domain.ErrNotResolved)
}

func TestLoadAllRestoresState(t *testing.T) {
	f := newFixture(t)
	info := f.createMarket(t, 2, "100")
	ctx := context.Background()

	_, err := f.svc.Trade(ctx, info.ID, testAlice, 1, domain.SideBuy, dec(t, "5"), dec(t, "10"))
	require.NoError(t, err)

	// A fresh service over the same stores sees identical state.
	svc2 := NewMarketService(
		f.store, f.store, memTransferStore{f.store}, memResolutionStore{f.store},
		f.store, newMemPriceCache(), newMemLocks(), &memBus{}, &memAudit{},
		fakeSigner{addr: testOwner}, nil, slog.New(slog.DiscardHandler),
	)
	require.NoError(t, svc2.LoadAll(ctx))

	q, err := svc2.Quantities(ctx, info.ID)
	require.NoError(t, err)
	require.Equal(t, dec(t, "5"), q[1])

	bal, err := svc2.Balances(ctx, info.ID, testAlice)
	require.NoError(t, err)
	require.Equal(t, dec(t, "5"), bal[1])
}

// Readers and writers may hit the same market at once; a cold cache forces
// every read through the engine. Run with -race.
func TestConcurrentTradesAndPriceReads(t *testing.T) {
	f := newFixture(t)
	f.cache.alwaysMiss = true
	ctx := context.Background()
	info := f.createMarket(t, 2, "100")

	size := dec(t, "1")
	payment := dec(t, "5")

	const rounds = 100
	errs := make(chan error, 2*rounds)
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func(outcome int) {
			defer wg.Done()
			_, err := f.svc.Trade(ctx, info.ID, testAlice, outcome, domain.SideBuy, size, payment)
			errs <- err
		}(i % 2)
		go func() {
			defer wg.Done()
			_, err := f.svc.Prices(ctx, info.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	q, err := f.svc.Quantities(ctx, info.ID)
	require.NoError(t, err)
	require.Equal(t, dec(t, "50"), q[0])
	require.Equal(t, dec(t, "50"), q[1])
}

func TestUnknownMarket(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Info(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
