package sales

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tokoberas/tokoberas/internal/inventory"
)

type memStore struct {
	products  map[int64]ProductBasis
	sales     map[int64]Sale
	lines     map[int64]SaleLine
	movements []inventory.Movement
	nextSale  int64
	nextLine  int64
	nextMove  int64
	seq       int64
}

func newMemStore() *memStore {
	return &memStore{
		products: map[int64]ProductBasis{},
		sales:    map[int64]Sale{},
		lines:    map[int64]SaleLine{},
	}
}

func (m *memStore) snapshot() *memStore {
	clone := newMemStore()
	for k, v := range m.products {
		clone.products[k] = v
	}
	for k, v := range m.sales {
		clone.sales[k] = v
	}
	for k, v := range m.lines {
		clone.lines[k] = v
	}
	clone.movements = append([]inventory.Movement{}, m.movements...)
	clone.nextSale, clone.nextLine, clone.nextMove, clone.seq = m.nextSale, m.nextLine, m.nextMove, m.seq
	return clone
}

func (m *memStore) restore(from *memStore) {
	m.products = from.products
	m.sales = from.sales
	m.lines = from.lines
	m.movements = from.movements
	m.nextSale, m.nextLine, m.nextMove, m.seq = from.nextSale, from.nextLine, from.nextMove, from.seq
}

func (m *memStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	saved := m.snapshot()
	if err := fn(ctx, &memTx{store: m}); err != nil {
		m.restore(saved)
		return err
	}
	return nil
}

func (m *memStore) Get(ctx context.Context, saleID int64) (Sale, error) {
	sale, ok := m.sales[saleID]
	if !ok {
		return Sale{}, ErrNotFound
	}
	sale.Lines = m.saleLines(saleID)
	return sale, nil
}

func (m *memStore) List(ctx context.Context, filter ListFilter) ([]Sale, int, error) {
	out := []Sale{}
	for _, sale := range m.sales {
		if filter.Status != "" && sale.Status != filter.Status {
			continue
		}
		out = append(out, sale)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (m *memStore) saleLines(saleID int64) []SaleLine {
	lines := []SaleLine{}
	for _, line := range m.lines {
		if line.SaleID == saleID {
			lines = append(lines, line)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines
}

type memTx struct {
	store *memStore
}

func (t *memTx) NextSaleNumber(ctx context.Context) (string, error) {
	t.store.seq++
	return fmt.Sprintf("TRX-20260901-%04d", t.store.seq), nil
}

func (t *memTx) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	t.store.nextSale++
	sale.ID = t.store.nextSale
	t.store.sales[sale.ID] = sale
	return sale.ID, nil
}

func (t *memTx) GetSaleForUpdate(ctx context.Context, saleID int64) (Sale, error) {
	sale, ok := t.store.sales[saleID]
	if !ok {
		return Sale{}, ErrNotFound
	}
	return sale, nil
}

func (t *memTx) GetLine(ctx context.Context, saleID, lineID int64) (SaleLine, error) {
	line, ok := t.store.lines[lineID]
	if !ok || line.SaleID != saleID {
		return SaleLine{}, ErrLineNotFound
	}
	return line, nil
}

func (t *memTx) InsertLine(ctx context.Context, line SaleLine) (int64, error) {
	t.store.nextLine++
	line.ID = t.store.nextLine
	t.store.lines[line.ID] = line
	return line.ID, nil
}

func (t *memTx) UpdateLineQty(ctx context.Context, lineID int64, qty, unitPrice float64) error {
	line, ok := t.store.lines[lineID]
	if !ok {
		return ErrLineNotFound
	}
	line.Qty = qty
	line.UnitPrice = unitPrice
	t.store.lines[lineID] = line
	return nil
}

func (t *memTx) UpdateLineRollup(ctx context.Context, line SaleLine) error {
	stored, ok := t.store.lines[line.ID]
	if !ok {
		return ErrLineNotFound
	}
	stored.ProductName = line.ProductName
	stored.Subtotal = line.Subtotal
	stored.CostBasis = line.CostBasis
	stored.SubtotalCost = line.SubtotalCost
	stored.Profit = line.Profit
	t.store.lines[line.ID] = stored
	return nil
}

func (t *memTx) DeleteLine(ctx context.Context, lineID int64) error {
	if _, ok := t.store.lines[lineID]; !ok {
		return ErrLineNotFound
	}
	delete(t.store.lines, lineID)
	return nil
}

func (t *memTx) ListLines(ctx context.Context, saleID int64) ([]SaleLine, error) {
	return t.store.saleLines(saleID), nil
}

func (t *memTx) UpdateSaleTotals(ctx context.Context, saleID int64, total, totalCost, totalProfit float64) error {
	sale, ok := t.store.sales[saleID]
	if !ok {
		return ErrNotFound
	}
	sale.Total = total
	sale.TotalCost = totalCost
	sale.TotalProfit = totalProfit
	t.store.sales[saleID] = sale
	return nil
}

func (t *memTx) UpdateSaleStatus(ctx context.Context, sale Sale) error {
	stored, ok := t.store.sales[sale.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Status = sale.Status
	stored.PaidAt = sale.PaidAt
	stored.CompletedAt = sale.CompletedAt
	stored.Total = sale.Total
	stored.TotalCost = sale.TotalCost
	stored.TotalProfit = sale.TotalProfit
	t.store.sales[sale.ID] = stored
	return nil
}

func (t *memTx) GetProductBasis(ctx context.Context, productID int64) (ProductBasis, bool, error) {
	p, ok := t.store.products[productID]
	return p, ok, nil
}

func (t *memTx) SaleExists(ctx context.Context, saleID int64) (bool, error) {
	_, ok := t.store.sales[saleID]
	return ok, nil
}

func (t *memTx) Inventory() inventory.TxRepository {
	return &memInvTx{store: t.store}
}

type memInvTx struct {
	store *memStore
}

func (t *memInvTx) GetProductForUpdate(ctx context.Context, productID int64) (inventory.Product, error) {
	p, ok := t.store.products[productID]
	if !ok {
		return inventory.Product{}, inventory.ErrProductNotFound
	}
	return inventory.Product{ID: p.ID, Name: p.Name, Stock: p.Stock, CostPrice: p.CostPrice, SellPrice: p.SellPrice}, nil
}

func (t *memInvTx) InsertMovement(ctx context.Context, m inventory.Movement) (int64, error) {
	t.store.nextMove++
	m.ID = t.store.nextMove
	t.store.movements = append(t.store.movements, m)
	return m.ID, nil
}

func (t *memInvTx) UpdateProductStock(ctx context.Context, productID int64, stock float64) error {
	p, ok := t.store.products[productID]
	if !ok {
		return inventory.ErrProductNotFound
	}
	p.Stock = stock
	t.store.products[productID] = p
	return nil
}

type recordingHook struct {
	events []CompletedEvent
	err    error
}

func (h *recordingHook) HandleSaleCompleted(ctx context.Context, evt CompletedEvent) error {
	h.events = append(h.events, evt)
	return h.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(store *memStore, hook IntegrationHandler) *Service {
	stock := inventory.NewService(nil, nil, nil, testLogger(), inventory.ServiceConfig{})
	return NewService(store, stock, hook, nil, testLogger())
}

func seedProducts(store *memStore) {
	store.products[1] = ProductBasis{ID: 1, Name: "Beras Pandan Wangi 5kg", CostPrice: 8000, SellPrice: 12000, Stock: 100, IsActive: true}
	store.products[2] = ProductBasis{ID: 2, Name: "Beras Rojolele 5kg", CostPrice: 6000, SellPrice: 9000, Stock: 50, IsActive: true}
}

func TestCreateSaleComputesLineAndTotalRollups(t *testing.T) {
	store := newMemStore()
	seedProducts(store)
	svc := newTestService(store, nil)

	sale, err := svc.Create(context.Background(), CreateSaleInput{
		PaymentMethod: PaymentCash,
		ActorID:       7,
		Lines:         []LineInput{{ProductID: 1, Qty: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, sale.Status)
	require.Len(t, sale.Lines, 1)

	line := sale.Lines[0]
	require.Equal(t, "Beras Pandan Wangi 5kg", line.ProductName)
	require.Equal(t, 12000.0, line.UnitPrice)
	require.Equal(t, 60000.0, line.Subtotal)
	require.Equal(t, 8000.0, line.CostBasis)
	require.Equal(t, 40000.0, line.SubtotalCost)
	require.Equal(t, 20000.0, line.Profit)

	require.Equal(t, 60000.0, sale.Total)
	require.Equal(t, 40000.0, sale.TotalCost)
	require.Equal(t, 20000.0, sale.TotalProfit)
}

func TestAddAndRemoveLineRefreshTotals(t *testing.T) {
	store := newMemStore()
	seedProducts(store)
	svc := newTestService(store, nil)
	ctx := context.Background()

	sale, err := svc.Create(ctx, CreateSaleInput{
		PaymentMethod: PaymentCash,
		Lines:         []LineInput{{ProductID: 1, Qty: 5}},
	})
	require.NoError(t, err)

	sale, err = svc.AddLine(ctx, sale.ID, LineInput{ProductID: 2, Qty: 3}, 7)
	require.NoError(t, err)
	require.Len(t, sale.Lines, 2)
	require.Equal(t, 27000.0, sale.Lines[1].Subtotal)
	require.Equal(t, 87000.0, sale.Total)
	require.Equal(t, 58000.0, sale.TotalCost)
	require.Equal(t, 29000.0, sale.TotalProfit)

	sale, err = svc.RemoveLine(ctx, sale.ID, sale.Lines[1].ID, 7)
	require.NoError(t, err)
	require.Len(t, sale.Lines, 1)
	require.Equal(t, 60000.0, sale.Total)
	require.Equal(t, 40000.0, sale.TotalCost)
	require.Equal(t, 20000.0, sale.TotalProfit)
}

func TestRemovingLastLineZeroesTotals(t *testing.T) {
	store := newMemStore()
	seedProducts(store)
	svc := newTestService(store, nil)
	ctx := context.Background()

	sale, err := svc.Create(ctx, CreateSaleInput{
		PaymentMethod: PaymentCash,
		Lines:         []LineInput{{ProductID: 1, Qty: 2}},
	})
	require.NoError(t, err)

	sale, err = svc.RemoveLine(ctx, sale.ID, sale.Lines[0].ID, 0)
	require.NoError(t, err)
	require.Empty(t, sale.Lines)
	require.Zero(t, sale.Total)
	require.Zero(t, sale.TotalCost)
	require.Zero(t, sale.TotalProfit)
}

func TestRecomputationIsIdempotent(t *testing.T) {
	store := newMemStore()
	seedProducts(store)
	svc := newTestService(store, nil)
	ctx := context.Background()

	sale, err := svc.Create(ctx, CreateSaleInput{
		PaymentMethod: PaymentCash,
		Lines:         []LineInput{{ProductID: 1, Qty: 5}},
	})
	require.NoError(t, err)
	lineID := sale.Lines[0].ID

	first, err := svc.UpdateLine(ctx, sale.ID, lineID, 5, 12000, 0)
	require.NoError(t, err)
	second, err := svc.UpdateLine(ctx, sale.ID, lineID, 5, 12000, 0)
	require.NoError(t, err)
	require.Equal(t, first.Total, second.Total)
	require.Equal(t, first.TotalCost, second.TotalCost)
	require.Equal(t, first.TotalProfit, second.TotalProfit)
	require.Equal(t, first.Lines[0].Profit, second.Lines[0].Profit)
}

func TestLineRollupUsesCurrentCostPrice(t *testing.T) {
	store := newMemStore()
	seedProducts(store)
	svc := newTestService(store, nil)
	ctx := context.Background()

	sale, err := svc.Create(ctx, CreateSaleInput{
		PaymentMethod: PaymentCash,
		Lines:         []LineInput{{ProductID: 1, Qty: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, 20000.0, sale.TotalProfit)

	p := store.products[1]
	p.CostPrice = 9000
	store.products[1] = p

	sale, err = svc.UpdateLine(ctx, sale.ID, sale.Lines[0].ID, 5, 12000, 0)
	require.NoError(t, err)
	require.Equal(t, 9000.0, sale.Lines[0].CostBasis)
	require.Equal(t, 45000.0, sale.Lines[0].SubtotalCost)
	require.Equal(t, 15000.0, sale.TotalProfit)
}

func TestRollupSkipsVanishedProduct(t *testing.T) {
	store := newMemStore()
	seedProducts(store)
	svc := newTestService(store, nil)
	ctx := context.Background()

	sale, err := svc.Create(ctx, CreateSaleInput{
		PaymentMethod: PaymentCash,
		Lines:         []LineInput{{ProductID: 1, Qty: 5}},
	})
	require.NoError(t, err)

	delete(store.products, 1)

	sale, err = svc.UpdateLine(ctx, sale.ID, sale.Lines[0].ID, 4, 12000, 0)
	require.NoError(t, err)
	// qty changed but the derived columns keep their last computed values
	require.Equal(t, 4.0, sale.Lines[0].Qty)
	require.Equal(t, 60000.0, sale.Lines[0].Subtotal)
	require.Equal(t, 60000.0, sale.Total)
}

func TestCompletionDeductsStockAndFiresHookOnce(t *testing.T) {
	store := newMemStore()
	seedProducts(store)
	hook := &recordingHook{}
	svc := newTestService(store, hook)
	ctx := context.Background()

	sale, err := svc.Create(ctx, CreateSaleInput{
		PaymentMethod: PaymentQRIS,
		Lines:         []LineInput{{ProductID: 1, Qty: 5}, {ProductID: 2, Qty: 3}},
	})
	require.NoError(t, err)

	completed, err := svc.UpdateStatus(ctx, sale.ID, StatusCompleted, 7)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.PaidAt)

	require.Equal(t, 95.0, store.products[1].Stock)
	require.Equal(t, 47.0, store.products[2].Stock)
	require.Len(t, store.movements, 2)
	for _, m := range store.movements {
		require.Equal(t, inventory.MovementOut, m.Type)
		require.Equal(t, inventory.RefSale, m.Ref.Kind)
		require.Equal(t, sale.ID, m.Ref.ID)
	}

	require.Len(t, hook.events, 1)
	require.Equal(t, 87000.0, hook.events[0].Total)
	require.Equal(t, 29000.0, hook.events[0].TotalProfit)

	// repeating the terminal status is a no-op and fires nothing
	again, err := svc.UpdateStatus(ctx, sale.ID, StatusCompleted, 7)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, again.Status)
	require.Len(t, hook.events, 1)
	require.Len(t, store.movements, 2)
}

func TestCompletionAbortsOnInsufficientStock(t *testing.T) {
	store := newMemStore()
	seedProducts(store)
	p := store.products[2]
	p.Stock = 1
	store.products[2] = p
	hook := &recordingHook{}
	svc := newTestService(store, hook)
	ctx := context.Background()

	sale, err := svc.Create(ctx, CreateSaleInput{
		PaymentMethod: PaymentCash,
		Lines:         []LineInput{{ProductID: 1, Qty: 5}, {ProductID: 2, Qty: 3}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, sale.ID, StatusCompleted, 7)
	require.True(t, inventory.IsInsufficientStock(err))

	// the whole transition rolled back: status, stock and ledger untouched
	after, err := svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, after.Status)
	require.Equal(t, 100.0, store.products[1].Stock)
	require.Equal(t, 1.0, store.products[2].Stock)
	require.Empty(t, store.movements)
	require.Empty(t, hook.events)
}

func TestCompletionRequiresLines(t *testing.T) {
	store := newMemStore()
	seedProducts(store)
	svc := newTestService(store, nil)
	ctx := context.Background()

	sale, err := svc.Create(ctx, CreateSaleInput{PaymentMethod: PaymentCash})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, sale.ID, StatusCompleted, 0)
	require.ErrorIs(t, err, ErrEmptySale)
}

func TestStatusTransitionRules(t *testing.T) {
	store := newMemStore()
	seedProducts(store)
	svc := newTestService(store, nil)
	ctx := context.Background()

	sale, err := svc.Create(ctx, CreateSaleInput{
		Channel:       ChannelOnline,
		PaymentMethod: PaymentTransfer,
		Lines:         []LineInput{{ProductID: 1, Qty: 2}},
	})
	require.NoError(t, err)

	// pending cannot jump to ready
	_, err = svc.UpdateStatus(ctx, sale.ID, StatusReady, 0)
	require.ErrorIs(t, err, ErrInvalidTransition)

	sale, err = svc.UpdateStatus(ctx, sale.ID, StatusPaid, 0)
	require.NoError(t, err)
	require.NotNil(t, sale.PaidAt)

	sale, err = svc.UpdateStatus(ctx, sale.ID, StatusReady, 0)
	require.NoError(t, err)

	sale, err = svc.UpdateStatus(ctx, sale.ID, StatusCompleted, 0)
	require.NoError(t, err)

	// completed is terminal
	_, err = svc.UpdateStatus(ctx, sale.ID, StatusCancelled, 0)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestLineEditsRejectedAfterCompletion(t *testing.T) {
	store := newMemStore()
	seedProducts(store)
	svc := newTestService(store, nil)
	ctx := context.Background()

	sale, err := svc.Create(ctx, CreateSaleInput{
		PaymentMethod: PaymentCash,
		Lines:         []LineInput{{ProductID: 1, Qty: 2}},
	})
	require.NoError(t, err)
	lineID := sale.Lines[0].ID

	_, err = svc.UpdateStatus(ctx, sale.ID, StatusCompleted, 0)
	require.NoError(t, err)

	_, err = svc.AddLine(ctx, sale.ID, LineInput{ProductID: 2, Qty: 1}, 0)
	require.ErrorIs(t, err, ErrNotEditable)
	_, err = svc.UpdateLine(ctx, sale.ID, lineID, 3, 12000, 0)
	require.ErrorIs(t, err, ErrNotEditable)
	_, err = svc.RemoveLine(ctx, sale.ID, lineID, 0)
	require.ErrorIs(t, err, ErrNotEditable)
}

func TestCompletionSurvivesFailingHook(t *testing.T) {
	store := newMemStore()
	seedProducts(store)
	hook := &recordingHook{err: fmt.Errorf("ledger offline")}
	svc := newTestService(store, hook)
	ctx := context.Background()

	sale, err := svc.Create(ctx, CreateSaleInput{
		PaymentMethod: PaymentCash,
		Lines:         []LineInput{{ProductID: 1, Qty: 1}},
	})
	require.NoError(t, err)

	completed, err := svc.UpdateStatus(ctx, sale.ID, StatusCompleted, 0)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
	require.Len(t, hook.events, 1)
}

func TestInactiveProductRejected(t *testing.T) {
	store := newMemStore()
	seedProducts(store)
	p := store.products[2]
	p.IsActive = false
	store.products[2] = p
	svc := newTestService(store, nil)

	_, err := svc.Create(context.Background(), CreateSaleInput{
		PaymentMethod: PaymentCash,
		Lines:         []LineInput{{ProductID: 2, Qty: 1}},
	})
	require.ErrorIs(t, err, ErrProductInactive)
}

func TestCreateRejectsUnknownChannel(t *testing.T) {
	store := newMemStore()
	seedProducts(store)
	svc := newTestService(store, nil)

	_, err := svc.Create(context.Background(), CreateSaleInput{
		Channel:       SaleChannel("whatsapp"),
		PaymentMethod: PaymentCash,
		Lines:         []LineInput{{ProductID: 1, Qty: 1}},
	})
	require.ErrorIs(t, err, ErrInvalidLine)
	require.Empty(t, store.sales)
}
