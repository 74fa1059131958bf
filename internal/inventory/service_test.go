package inventory

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	products  map[int64]Product
	movements []Movement
	nextID    int64
}

func newMemStore() *memStore {
	return &memStore{products: map[int64]Product{}}
}

func (s *memStore) snapshot() *memStore {
	copied := &memStore{
		products:  make(map[int64]Product, len(s.products)),
		movements: append([]Movement(nil), s.movements...),
		nextID:    s.nextID,
	}
	for id, p := range s.products {
		copied.products[id] = p
	}
	return copied
}

func (s *memStore) restore(from *memStore) {
	s.products = from.products
	s.movements = from.movements
	s.nextID = from.nextID
}

// memRepo runs the transactional callback against the store, rolling the
// store back when the callback errors.
type memRepo struct {
	store *memStore
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	saved := r.store.snapshot()
	if err := fn(ctx, &memTx{store: r.store}); err != nil {
		r.store.restore(saved)
		return err
	}
	return nil
}

func (r *memRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	out := []Movement{}
	for _, m := range r.store.movements {
		if filter.ProductID != 0 && m.ProductID != filter.ProductID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

type memTx struct {
	store *memStore
}

func (t *memTx) GetProductForUpdate(ctx context.Context, productID int64) (Product, error) {
	p, ok := t.store.products[productID]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (t *memTx) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	t.store.nextID++
	m.ID = t.store.nextID
	t.store.movements = append(t.store.movements, m)
	return m.ID, nil
}

func (t *memTx) UpdateProductStock(ctx context.Context, productID int64, stock float64) error {
	p, ok := t.store.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	p.Stock = stock
	t.store.products[productID] = p
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(store *memStore, cfg ServiceConfig) *Service {
	return NewService(&memRepo{store: store}, nil, nil, testLogger(), cfg)
}

func seedProduct(store *memStore, id int64, name string, stock float64) {
	store.products[id] = Product{ID: id, Name: name, Stock: stock, CostPrice: 62000, SellPrice: 75000}
}

func TestRecordMovementKeepsLedgerAndAggregateInLockstep(t *testing.T) {
	store := newMemStore()
	seedProduct(store, 1, "Beras Pandan Wangi 5kg", 40)
	svc := newTestService(store, ServiceConfig{})
	ctx := context.Background()

	inputs := []MovementInput{
		{ProductID: 1, Type: MovementIn, Qty: 10, ActorID: 2, Note: "restok"},
		{ProductID: 1, Type: MovementOut, Qty: 6, ActorID: 2},
		{ProductID: 1, Type: MovementAdjustment, Qty: -3, ActorID: 2, Note: "opname"},
		{ProductID: 1, Type: MovementReturn, Qty: 1, ActorID: 2},
	}
	for _, input := range inputs {
		_, err := svc.RecordMovement(ctx, input)
		require.NoError(t, err)
	}

	// 40 +10 -6 -3 +1
	require.Equal(t, float64(42), store.products[1].Stock)
	require.Len(t, store.movements, 4)

	// every entry continues from the previous one and the aggregate matches
	// the last stock_after
	running := float64(40)
	for _, m := range store.movements {
		require.Equal(t, running, m.StockBefore)
		require.Equal(t, running+m.Qty, m.StockAfter)
		running = m.StockAfter
	}
	require.Equal(t, running, store.products[1].Stock)
}

func TestRecordMovementCapturesPricesFromProduct(t *testing.T) {
	store := newMemStore()
	seedProduct(store, 1, "Beras Pandan Wangi 5kg", 40)
	svc := newTestService(store, ServiceConfig{})

	m, err := svc.RecordMovement(context.Background(), MovementInput{ProductID: 1, Type: MovementOut, Qty: 2, ActorID: 2})
	require.NoError(t, err)
	require.Equal(t, float64(62000), m.UnitCost)
	require.Equal(t, float64(75000), m.UnitPrice)

	m, err = svc.RecordMovement(context.Background(), MovementInput{ProductID: 1, Type: MovementOut, Qty: 1, UnitPrice: 70000, ActorID: 2})
	require.NoError(t, err)
	require.Equal(t, float64(70000), m.UnitPrice)
}

func TestRecordMovementRejectsShortfallWithoutWriting(t *testing.T) {
	store := newMemStore()
	seedProduct(store, 1, "Beras Rojolele 5kg", 5)
	svc := newTestService(store, ServiceConfig{})

	_, err := svc.RecordMovement(context.Background(), MovementInput{ProductID: 1, Type: MovementOut, Qty: 8, ActorID: 2})
	require.True(t, IsInsufficientStock(err))

	var shortfall *InsufficientStockError
	require.ErrorAs(t, err, &shortfall)
	require.Equal(t, float64(8), shortfall.Requested)
	require.Equal(t, float64(5), shortfall.Available)
	require.Equal(t, float64(3), shortfall.Shortfall())

	require.Equal(t, float64(5), store.products[1].Stock)
	require.Empty(t, store.movements)
}

func TestRecordMovementAllowsNegativeWhenConfigured(t *testing.T) {
	store := newMemStore()
	seedProduct(store, 1, "Beras Rojolele 5kg", 5)
	svc := newTestService(store, ServiceConfig{AllowNegativeStock: true})

	m, err := svc.RecordMovement(context.Background(), MovementInput{ProductID: 1, Type: MovementOut, Qty: 8, ActorID: 2})
	require.NoError(t, err)
	require.Equal(t, float64(-3), m.StockAfter)
	require.Equal(t, float64(-3), store.products[1].Stock)
}

func TestRecordMovementInputValidation(t *testing.T) {
	store := newMemStore()
	seedProduct(store, 1, "Beras IR64 25kg", 20)
	svc := newTestService(store, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{ProductID: 0, Type: MovementIn, Qty: 1})
	require.ErrorIs(t, err, ErrProductNotFound)

	_, err = svc.RecordMovement(ctx, MovementInput{ProductID: 1, Type: "transfer", Qty: 1})
	require.ErrorIs(t, err, ErrUnknownMovementType)

	_, err = svc.RecordMovement(ctx, MovementInput{ProductID: 1, Type: MovementIn, Qty: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.RecordMovement(ctx, MovementInput{ProductID: 1, Type: MovementIn, Qty: -4})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.RecordMovement(ctx, MovementInput{ProductID: 99, Type: MovementIn, Qty: 4})
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestRecordInitialStockSeedsLedger(t *testing.T) {
	store := newMemStore()
	seedProduct(store, 1, "Beras Mentik Susu 5kg", 15)
	svc := newTestService(store, ServiceConfig{})

	m, err := svc.RecordInitialStock(context.Background(), 1, 7, "stok awal")
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, MovementInitial, m.Type)
	require.Equal(t, float64(0), m.StockBefore)
	require.Equal(t, float64(15), m.StockAfter)
	require.Equal(t, int64(7), m.ActorID)
	require.Equal(t, MovementRef{Kind: RefProduct, ID: 1}, m.Ref)
}

func TestRecordInitialStockSkipsZeroStock(t *testing.T) {
	store := newMemStore()
	seedProduct(store, 1, "Beras C4 10kg", 0)
	svc := newTestService(store, ServiceConfig{})

	m, err := svc.RecordInitialStock(context.Background(), 1, 7, "stok awal")
	require.NoError(t, err)
	require.Nil(t, m)
	require.Empty(t, store.movements)
}

func TestSignedDelta(t *testing.T) {
	cases := []struct {
		name    string
		typ     MovementType
		qty     float64
		want    float64
		wantErr error
	}{
		{"in is additive", MovementIn, 5, 5, nil},
		{"out subtracts", MovementOut, 5, -5, nil},
		{"damage subtracts", MovementDamage, 2, -2, nil},
		{"return adds", MovementReturn, 1, 1, nil},
		{"adjustment keeps sign", MovementAdjustment, -3, -3, nil},
		{"correction keeps sign", MovementCorrection, 4, 4, nil},
		{"zero rejected", MovementIn, 0, 0, ErrInvalidQuantity},
		{"negative directional rejected", MovementOut, -5, 0, ErrInvalidQuantity},
		{"unknown type rejected", MovementType("transfer"), 5, 0, ErrUnknownMovementType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := signedDelta(tc.typ, tc.qty)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestListMovementsValidation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.ListMovements(ctx, MovementFilter{})
	require.ErrorIs(t, err, ErrProductNotFound)

	_, err = svc.ListMovements(ctx, MovementFilter{ProductID: 1, Type: "transfer"})
	require.ErrorIs(t, err, ErrUnknownMovementType)
}

// lockingRepo serializes transactions on a mutex the way the database
// serializes them on the product row lock.
type lockingRepo struct {
	inner *memRepo
	mu    sync.Mutex
}

func (r *lockingRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner.WithTx(ctx, fn)
}

func (r *lockingRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return r.inner.ListMovements(ctx, filter)
}

func TestConcurrentMovementsSerializeOnProductLock(t *testing.T) {
	store := newMemStore()
	seedProduct(store, 1, "Beras IR64 25kg", 100)
	repo := &lockingRepo{inner: &memRepo{store: store}}
	svc := NewService(repo, nil, nil, testLogger(), ServiceConfig{})

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RecordMovement(context.Background(), MovementInput{
				ProductID: 1,
				Type:      MovementOut,
				Qty:       60,
				ActorID:   2,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	rejected := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case IsInsufficientStock(err):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, rejected)

	require.Equal(t, 40.0, store.products[1].Stock)
	require.Len(t, store.movements, 1)
	require.Equal(t, 100.0, store.movements[0].StockBefore)
	require.Equal(t, 40.0, store.movements[0].StockAfter)
}
