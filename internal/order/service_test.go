package order

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/MikeMC777/coopmarket/internal/auth"
)

var numberRe = regexp.MustCompile(`^ORD-\d{8}-\d{5}$`)

var (
	buyer  = auth.Identity{UserID: "u1", Email: "buyer@example.com", Role: auth.RoleCustomer}
	other  = auth.Identity{UserID: "u2", Email: "other@example.com", Role: auth.RoleCustomer}
	admin  = auth.Identity{UserID: "adm", Email: "admin@example.com", Role: auth.RoleAdmin}
	seller = auth.Identity{UserID: "coopuser", Email: "coop@example.com", Role: auth.RoleCooperative}
)

func newTestService(t *testing.T, st Store) (*Service, *recordedEvents) {
	t.Helper()
	ev := &recordedEvents{}
	svc, err := NewService(st, ev, metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider())
	require.NoError(t, err)
	return svc, ev
}

func place(attributeID string, qty int) PlaceRequest {
	return PlaceRequest{Items: []PlaceItem{{AttributeID: attributeID, Quantity: qty}}, PaymentMethod: "cash"}
}

func TestPlaceCommitsOrder(t *testing.T) {
	st := newMemStore()
	st.addVariant("X", "12.50", 10)
	st.addVariant("Z", "1.00", 4)
	st.addCart("c1", "u1", "X")
	st.addCart("c2", "u1", "Z")
	st.addCart("c3", "u2", "X")
	svc, ev := newTestService(t, st)

	resp, err := svc.Place(context.Background(), "u1", place("X", 3))
	require.NoError(t, err)

	assert.Regexp(t, numberRe, resp.OrderNumber)
	assert.Equal(t, StatusPending, resp.Status)
	assert.Equal(t, PaymentUnpaid, resp.PaymentStatus)
	assert.True(t, resp.Total.Equal(decimal.RequireFromString("37.50")), resp.Total.String())
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "coop1", resp.Items[0].Cooperative.ID)
	assert.Equal(t, "p-X", resp.Items[0].Product.ID)

	state := st.snapshot()
	assert.Equal(t, 7, state.variants["X"].Stock)
	assert.Equal(t, 4, state.variants["Z"].Stock)
	assert.Len(t, state.orders, 1)
	require.Len(t, state.items, 1)
	assert.Equal(t, 3, state.items[0].Quantity)
	assert.True(t, state.items[0].UnitPrice.Equal(decimal.RequireFromString("12.50")))

	// only the buyer's row for the ordered variant goes away
	assert.NotContains(t, state.cart, "c1")
	assert.Contains(t, state.cart, "c2")
	assert.Contains(t, state.cart, "c3")

	require.Len(t, state.history, 1)
	assert.Equal(t, StatusPending, state.history[0].Status)
	assert.Equal(t, []string{EventOrderPlaced}, ev.types())
}

func TestPlaceInsufficientStock(t *testing.T) {
	st := newMemStore()
	st.addVariant("Y", "3.00", 2)
	st.addCart("c1", "u1", "Y")
	svc, ev := newTestService(t, st)

	_, err := svc.Place(context.Background(), "u1", place("Y", 5))
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Y", stockErr.AttributeID)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)

	state := st.snapshot()
	assert.Empty(t, state.orders)
	assert.Empty(t, state.items)
	assert.Empty(t, state.history)
	assert.Equal(t, 2, state.variants["Y"].Stock)
	assert.Contains(t, state.cart, "c1")
	assert.Zero(t, st.decrementCalls)
	assert.Empty(t, ev.types())
}

func TestPlaceRollsBackWhenItemInsertFails(t *testing.T) {
	st := newMemStore()
	st.addVariant("X", "2.00", 10)
	st.failInsertItem = errors.New("disk full")
	svc, _ := newTestService(t, st)

	_, err := svc.Place(context.Background(), "u1", place("X", 1))
	require.Error(t, err)

	state := st.snapshot()
	assert.Equal(t, 1, st.insertItemCalls)
	assert.Empty(t, state.orders, "header must not survive a failed item insert")
	assert.Equal(t, 10, state.variants["X"].Stock)
}

func TestPlaceRollsBackWhenDecrementFails(t *testing.T) {
	st := newMemStore()
	st.addVariant("A", "2.00", 10)
	st.addVariant("B", "4.00", 10)
	st.failDecrement = errors.New("connection reset")
	st.failDecrementID = "B"
	svc, _ := newTestService(t, st)

	req := PlaceRequest{Items: []PlaceItem{{AttributeID: "A", Quantity: 2}, {AttributeID: "B", Quantity: 1}}}
	_, err := svc.Place(context.Background(), "u1", req)
	require.Error(t, err)

	state := st.snapshot()
	assert.Equal(t, 2, st.decrementCalls)
	assert.Empty(t, state.orders)
	assert.Empty(t, state.items)
	assert.Equal(t, 10, state.variants["A"].Stock, "earlier decrement must be rolled back")
	assert.Equal(t, 10, state.variants["B"].Stock)
}

// staleStore reports more stock than the store holds, the way a concurrent
// order can drain a variant between the check and the commit.
type staleStore struct {
	*memStore
	reported int
}

func (s staleStore) Variants(ctx context.Context, ids []string) (map[string]Variant, error) {
	out, err := s.memStore.Variants(ctx, ids)
	for id, v := range out {
		v.Stock = s.reported
		out[id] = v
	}
	return out, err
}

func TestPlaceConditionalDecrementCatchesStaleCheck(t *testing.T) {
	st := newMemStore()
	st.addVariant("X", "1.00", 1)
	svc, _ := newTestService(t, staleStore{memStore: st, reported: 50})

	_, err := svc.Place(context.Background(), "u1", place("X", 3))
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 1, stockErr.Available)

	state := st.snapshot()
	assert.Empty(t, state.orders)
	assert.Empty(t, state.items)
	assert.Equal(t, 1, state.variants["X"].Stock)
}

func TestPlaceMergesDuplicateLines(t *testing.T) {
	st := newMemStore()
	st.addVariant("X", "5.00", 10)
	svc, _ := newTestService(t, st)

	req := PlaceRequest{Items: []PlaceItem{{AttributeID: "X", Quantity: 2}, {AttributeID: "X", Quantity: 1}}}
	resp, err := svc.Place(context.Background(), "u1", req)
	require.NoError(t, err)

	require.Len(t, resp.Items, 1)
	assert.Equal(t, 3, resp.Items[0].Quantity)
	assert.Equal(t, 7, st.stock("X"))
}

func TestPlaceMergedLinesCheckedAgainstStock(t *testing.T) {
	st := newMemStore()
	st.addVariant("X", "5.00", 4)
	svc, _ := newTestService(t, st)

	req := PlaceRequest{Items: []PlaceItem{{AttributeID: "X", Quantity: 3}, {AttributeID: "X", Quantity: 3}}}
	_, err := svc.Place(context.Background(), "u1", req)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 6, stockErr.Requested)
	assert.Equal(t, 4, st.stock("X"))
}

func TestPlaceValidation(t *testing.T) {
	st := newMemStore()
	st.addVariant("X", "5.00", 10)
	st.mu.Lock()
	hidden := st.state.variants["X"]
	hidden.ID, hidden.Active = "H", false
	st.state.variants["H"] = hidden
	st.mu.Unlock()
	svc, _ := newTestService(t, st)

	for _, tt := range []struct {
		name  string
		req   PlaceRequest
		check func(t *testing.T, err error)
	}{
		{
			name:  "NoItems",
			req:   PlaceRequest{},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrEmptyItems) },
		},
		{
			name: "ZeroQuantity",
			req:  place("X", 0),
			check: func(t *testing.T, err error) {
				var qtyErr *InvalidQuantityError
				assert.ErrorAs(t, err, &qtyErr)
			},
		},
		{
			name: "UnknownVariant",
			req:  place("nope", 1),
			check: func(t *testing.T, err error) {
				var e *UnknownVariantError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "nope", e.AttributeID)
			},
		},
		{
			name: "InactiveVariant",
			req:  place("H", 1),
			check: func(t *testing.T, err error) {
				var e *UnknownVariantError
				assert.ErrorAs(t, err, &e)
			},
		},
		{
			name: "UnknownCourier",
			req: PlaceRequest{
				Items:     []PlaceItem{{AttributeID: "X", Quantity: 1}},
				CourierID: "ghost",
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrCourierNotFound) },
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Place(context.Background(), "u1", tt.req)
			tt.check(t, err)
		})
	}
	assert.Equal(t, 10, st.stock("X"))
	assert.Empty(t, st.snapshot().orders)
}

func TestPlaceAddsCourierFee(t *testing.T) {
	st := newMemStore()
	st.addVariant("X", "10.00", 10)
	st.couriers["k1"] = decimal.RequireFromString("4.99")
	svc, _ := newTestService(t, st)

	req := place("X", 2)
	req.CourierID = "k1"
	resp, err := svc.Place(context.Background(), "u1", req)
	require.NoError(t, err)

	assert.True(t, resp.Subtotal.Equal(decimal.RequireFromString("20")))
	assert.True(t, resp.ShippingFee.Equal(decimal.RequireFromString("4.99")))
	assert.True(t, resp.Total.Equal(decimal.RequireFromString("24.99")))
	require.NotNil(t, resp.CourierID)
	assert.Equal(t, "k1", *resp.CourierID)
}

func TestPlaceSurvivesFollowUpFailures(t *testing.T) {
	st := newMemStore()
	st.addVariant("X", "1.00", 5)
	st.addCart("c1", "u1", "X")
	st.failCartCleanup = errors.New("cart down")
	st.failHistory = errors.New("history down")
	st.failGraph = errors.New("replica lag")
	svc, _ := newTestService(t, st)

	resp, err := svc.Place(context.Background(), "u1", place("X", 2))
	require.NoError(t, err)

	require.Len(t, resp.Items, 1)
	assert.Equal(t, "coop1", resp.Items[0].Cooperative.ID)
	assert.Equal(t, "Coop One", resp.Items[0].Cooperative.Name)
	assert.Equal(t, "u1", resp.Customer.ID)

	state := st.snapshot()
	assert.Len(t, state.orders, 1)
	assert.Equal(t, 3, state.variants["X"].Stock)
	assert.Contains(t, state.cart, "c1")
	assert.Empty(t, state.history)
}

func TestPlaceNumbersOrdersPerDay(t *testing.T) {
	day := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	st := newMemStore()
	st.clock = func() time.Time { return day }
	st.addVariant("X", "1.00", 10)
	svc, _ := newTestService(t, st)
	svc.now = func() time.Time { return day }

	first, err := svc.Place(context.Background(), "u1", place("X", 1))
	require.NoError(t, err)
	second, err := svc.Place(context.Background(), "u1", place("X", 1))
	require.NoError(t, err)

	assert.Equal(t, "ORD-20260305-00001", first.OrderNumber)
	assert.Equal(t, "ORD-20260305-00002", second.OrderNumber)

	next := day.AddDate(0, 0, 1)
	st.clock = func() time.Time { return next }
	svc.now = func() time.Time { return next }
	third, err := svc.Place(context.Background(), "u1", place("X", 1))
	require.NoError(t, err)
	assert.Equal(t, "ORD-20260306-00001", third.OrderNumber)
}

func TestPlaceConcurrentNeverOversells(t *testing.T) {
	const (
		stock   = 10
		qty     = 3
		buyers  = 12
		maxFits = stock / qty
	)
	st := newMemStore()
	st.addVariant("X", "1.00", stock)
	svc, _ := newTestService(t, st)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
		ok   int
	)
	start := make(chan struct{})
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Place(context.Background(), "u1", place("X", qty))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ok++
		}()
	}
	close(start)
	wg.Wait()

	// Numbers come from a count read outside the transaction, so two racing
	// requests may compute the same one; the loser gets ErrNumberTaken.
	for _, err := range errs {
		var stockErr *InsufficientStockError
		if !errors.As(err, &stockErr) && !errors.Is(err, ErrNumberTaken) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	state := st.snapshot()
	assert.GreaterOrEqual(t, ok, 1)
	assert.LessOrEqual(t, ok, maxFits)
	assert.GreaterOrEqual(t, state.variants["X"].Stock, 0)
	assert.Equal(t, stock-ok*qty, state.variants["X"].Stock)
	assert.Len(t, state.orders, ok)
	assert.Len(t, state.items, ok)

	seen := map[string]bool{}
	for _, o := range state.orders {
		assert.False(t, seen[o.OrderNumber], "duplicate number %s", o.OrderNumber)
		seen[o.OrderNumber] = true
	}
}

func placedOrder(t *testing.T, svc *Service, qty int) *OrderResponse {
	t.Helper()
	resp, err := svc.Place(context.Background(), buyer.UserID, place("X", qty))
	require.NoError(t, err)
	return resp
}

func TestCancelRestocksPendingOrder(t *testing.T) {
	st := newMemStore()
	st.addVariant("X", "1.00", 10)
	svc, ev := newTestService(t, st)
	o := placedOrder(t, svc, 4)
	require.Equal(t, 6, st.stock("X"))

	resp, err := svc.Cancel(context.Background(), o.ID, buyer, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, resp.Status)
	assert.Equal(t, ItemCancelled, resp.Items[0].Status)
	assert.Equal(t, 10, st.stock("X"))

	hist, err := svc.History(context.Background(), o.ID, buyer)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, StatusCancelled, hist[1].Status)
	assert.Equal(t, "cancelled by customer", hist[1].Note)
	assert.Equal(t, []string{EventOrderPlaced, EventOrderStatusChanged}, ev.types())

	_, err = svc.Cancel(context.Background(), o.ID, buyer, "again")
	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, 10, st.stock("X"), "second cancel must not restock twice")
}

func TestCancelRules(t *testing.T) {
	st := newMemStore()
	st.addVariant("X", "1.00", 10)
	st.owners["coop1"] = seller.UserID
	svc, _ := newTestService(t, st)
	ctx := context.Background()

	o := placedOrder(t, svc, 1)
	_, err := svc.Cancel(ctx, o.ID, other, "")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Cancel(ctx, o.ID, seller, "")
	assert.ErrorIs(t, err, ErrForbidden, "sellers use the status endpoint")

	_, err = svc.UpdateStatus(ctx, o.ID, admin, StatusConfirmed, "")
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, o.ID, buyer, "")
	assert.ErrorIs(t, err, ErrNotCancellable)

	// admins may still cancel a confirmed order through the status change
	_, err = svc.UpdateStatus(ctx, o.ID, admin, StatusCancelled, "out of season")
	require.NoError(t, err)
	assert.Equal(t, 10, st.stock("X"))
}

func TestUpdateStatusWalksLifecycle(t *testing.T) {
	st := newMemStore()
	st.addVariant("X", "1.00", 10)
	st.owners["coop1"] = seller.UserID
	svc, _ := newTestService(t, st)
	ctx := context.Background()
	o := placedOrder(t, svc, 2)

	_, err := svc.UpdateStatus(ctx, o.ID, seller, StatusShipped, "")
	var trErr *TransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, StatusPending, trErr.From)
	assert.Equal(t, StatusShipped, trErr.To)

	var resp *OrderResponse
	for _, to := range []Status{StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered} {
		resp, err = svc.UpdateStatus(ctx, o.ID, seller, to, "")
		require.NoError(t, err, "to %s", to)
		assert.Equal(t, to, resp.Status)
	}
	assert.Equal(t, ItemFulfilled, resp.Items[0].Status)
	assert.Equal(t, 8, st.stock("X"))

	_, err = svc.UpdateStatus(ctx, o.ID, admin, StatusCancelled, "")
	assert.ErrorAs(t, err, &trErr)

	_, err = svc.UpdateStatus(ctx, o.ID, admin, Status("lost"), "")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	hist, err := svc.History(ctx, o.ID, admin)
	require.NoError(t, err)
	assert.Len(t, hist, 5)
}

func TestUpdateStatusSharedOrderNeedsAdmin(t *testing.T) {
	st := newMemStore()
	st.addVariant("X", "1.00", 10)
	st.addVariant("W", "1.00", 10)
	st.sellBy("W", "coop2", "Coop Two")
	st.owners["coop1"] = seller.UserID
	st.owners["coop2"] = "coop2user"
	svc, ev := newTestService(t, st)
	ctx := context.Background()

	o, err := svc.Place(ctx, buyer.UserID, PlaceRequest{
		Items:         []PlaceItem{{AttributeID: "X", Quantity: 2}, {AttributeID: "W", Quantity: 3}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	require.Equal(t, 8, st.stock("X"))
	require.Equal(t, 7, st.stock("W"))

	coop2 := auth.Identity{UserID: "coop2user", Role: auth.RoleCooperative}
	for _, caller := range []auth.Identity{seller, coop2} {
		_, err = svc.UpdateStatus(ctx, o.ID, caller, StatusCancelled, "")
		assert.ErrorIs(t, err, ErrSharedOrder, caller.UserID)
	}
	_, err = svc.UpdateStatus(ctx, o.ID, buyer, StatusConfirmed, "")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.UpdateStatus(ctx, o.ID, auth.Identity{UserID: "coop3user", Role: auth.RoleCooperative}, StatusConfirmed, "")
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := svc.Get(ctx, o.ID, coop2)
	require.NoError(t, err, "each seller can still read the order")
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, 8, st.stock("X"))
	assert.Equal(t, 7, st.stock("W"))
	assert.Equal(t, []string{EventOrderPlaced}, ev.types())

	resp, err := svc.UpdateStatus(ctx, o.ID, admin, StatusCancelled, "split order")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, resp.Status)
	assert.Equal(t, 10, st.stock("X"))
	assert.Equal(t, 10, st.stock("W"))
}

func TestGetAuthorization(t *testing.T) {
	st := newMemStore()
	st.addVariant("X", "1.00", 10)
	st.owners["coop1"] = seller.UserID
	svc, _ := newTestService(t, st)
	ctx := context.Background()
	o := placedOrder(t, svc, 1)

	for _, tt := range []struct {
		name   string
		caller auth.Identity
		err    error
	}{
		{"Buyer", buyer, nil},
		{"Admin", admin, nil},
		{"SellingCooperative", seller, nil},
		{"OtherCustomer", other, ErrForbidden},
		{"OtherCooperative", auth.Identity{UserID: "coop2", Role: auth.RoleCooperative}, ErrForbidden},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Get(ctx, o.ID, tt.caller)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}

	_, err := svc.Get(ctx, "missing", admin)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListScopesByCaller(t *testing.T) {
	st := newMemStore()
	st.addVariant("X", "1.00", 10)
	svc, _ := newTestService(t, st)
	ctx := context.Background()
	placedOrder(t, svc, 1)
	_, err := svc.Place(ctx, other.UserID, place("X", 1))
	require.NoError(t, err)

	mine, err := svc.List(ctx, buyer, "", 20, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, buyer.UserID, mine[0].UserID)

	all, err := svc.List(ctx, admin, StatusPending, 20, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.List(ctx, admin, Status("bogus"), 20, 0)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestAssignCourierAndPayment(t *testing.T) {
	st := newMemStore()
	st.addVariant("X", "1.00", 10)
	st.couriers["k1"] = decimal.Zero
	svc, _ := newTestService(t, st)
	ctx := context.Background()
	o := placedOrder(t, svc, 1)

	_, err := svc.AssignCourier(ctx, o.ID, "ghost", "")
	assert.ErrorIs(t, err, ErrCourierNotFound)

	resp, err := svc.AssignCourier(ctx, o.ID, "k1", "TRK-1")
	require.NoError(t, err)
	require.NotNil(t, resp.CourierID)
	assert.Equal(t, "k1", *resp.CourierID)
	assert.Equal(t, "TRK-1", resp.TrackingNumber)

	_, err = svc.SetPayment(ctx, o.ID, PaymentStatus("maybe"))
	assert.ErrorIs(t, err, ErrInvalidPayment)
	resp, err = svc.SetPayment(ctx, o.ID, PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, resp.PaymentStatus)
}
