package order

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type cartRow struct {
	userID      string
	attributeID string
}

type memState struct {
	variants map[string]Variant
	orders   map[string]Order
	items    []Item
	history  []History
	cart     map[string]cartRow
}

func (s memState) clone() memState {
	c := memState{
		variants: make(map[string]Variant, len(s.variants)),
		orders:   make(map[string]Order, len(s.orders)),
		items:    append([]Item(nil), s.items...),
		history:  append([]History(nil), s.history...),
		cart:     make(map[string]cartRow, len(s.cart)),
	}
	for k, v := range s.variants {
		c.variants[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.cart {
		c.cart[k] = v
	}
	return c
}

// memStore is an in-memory Store whose transactions are serialized and
// rolled back by restoring a snapshot.
type memStore struct {
	mu    sync.Mutex
	seq   int
	state memState

	couriers map[string]decimal.Decimal
	users    map[string]Customer
	owners   map[string]string // cooperative id -> owner user id

	clock           func() time.Time
	failInsertItem  error
	failDecrement   error
	failDecrementID string // empty fails every decrement
	failCartCleanup error
	failHistory     error
	failGraph       error
	insertItemCalls int
	decrementCalls  int
}

func newMemStore() *memStore {
	return &memStore{
		state: memState{
			variants: map[string]Variant{},
			orders:   map[string]Order{},
			cart:     map[string]cartRow{},
		},
		couriers: map[string]decimal.Decimal{},
		users:    map[string]Customer{},
		owners:   map[string]string{},
		clock:    time.Now,
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return prefix + strconv.Itoa(m.seq)
}

func (m *memStore) addVariant(id string, price string, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.variants[id] = Variant{
		ID: id, ProductID: "p-" + id, ProductName: "Product " + id, Name: "Variant " + id, SKU: "SKU-" + id,
		Price: decimal.RequireFromString(price), Stock: stock, Active: true,
		CooperativeID: "coop1", CooperativeName: "Coop One",
	}
}

// sellBy moves a variant to another cooperative.
func (m *memStore) sellBy(id, cooperativeID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.state.variants[id]
	v.CooperativeID, v.CooperativeName = cooperativeID, name
	m.state.variants[id] = v
}

func (m *memStore) addCart(id, userID, attributeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.cart[id] = cartRow{userID: userID, attributeID: attributeID}
}

func (m *memStore) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.variants[id].Stock
}

func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) Variants(_ context.Context, ids []string) (map[string]Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]Variant{}
	for _, id := range ids {
		if v, ok := m.state.variants[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (m *memStore) CourierFee(_ context.Context, id string) (decimal.Decimal, error) {
	fee, ok := m.couriers[id]
	if !ok {
		return decimal.Zero, ErrCourierNotFound
	}
	return fee, nil
}

func (m *memStore) CountOrders(_ context.Context, from, to time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.state.orders {
		if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) InTx(_ context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := m.state.clone()
	if err := fn(memTx{m}); err != nil {
		m.state = saved
		return err
	}
	return nil
}

type memTx struct{ m *memStore }

func (t memTx) InsertOrder(_ context.Context, o *Order) error {
	for _, x := range t.m.state.orders {
		if x.OrderNumber == o.OrderNumber {
			return ErrNumberTaken
		}
	}
	o.ID = t.m.nextID("o")
	o.CreatedAt = t.m.clock().UTC()
	o.UpdatedAt = o.CreatedAt
	t.m.state.orders[o.ID] = *o
	return nil
}

func (t memTx) InsertItem(_ context.Context, it *Item) error {
	t.m.insertItemCalls++
	if t.m.failInsertItem != nil {
		return t.m.failInsertItem
	}
	it.ID = t.m.nextID("i")
	t.m.state.items = append(t.m.state.items, *it)
	return nil
}

func (t memTx) DecrementStock(_ context.Context, id string, qty int) (bool, int, error) {
	t.m.decrementCalls++
	if t.m.failDecrement != nil && (t.m.failDecrementID == "" || t.m.failDecrementID == id) {
		return false, 0, t.m.failDecrement
	}
	v := t.m.state.variants[id]
	if v.Stock < qty {
		return false, v.Stock, nil
	}
	v.Stock -= qty
	t.m.state.variants[id] = v
	return true, 0, nil
}

func (t memTx) IncrementStock(_ context.Context, id string, qty int) error {
	v := t.m.state.variants[id]
	v.Stock += qty
	t.m.state.variants[id] = v
	return nil
}

func (t memTx) LockOrder(_ context.Context, id string) (*Order, error) {
	o, ok := t.m.state.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (t memTx) Items(_ context.Context, orderID string) ([]Item, error) {
	var out []Item
	for _, it := range t.m.state.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (t memTx) SetStatus(_ context.Context, id string, s Status) error {
	o := t.m.state.orders[id]
	o.Status = s
	t.m.state.orders[id] = o
	return nil
}

func (t memTx) SetItemsStatus(_ context.Context, orderID string, s ItemStatus) error {
	for i, it := range t.m.state.items {
		if it.OrderID == orderID && it.Status != ItemCancelled {
			t.m.state.items[i].Status = s
		}
	}
	return nil
}

func (t memTx) AppendHistory(_ context.Context, h *History) error {
	h.ID = t.m.nextID("h")
	t.m.state.history = append(t.m.state.history, *h)
	return nil
}

func (m *memStore) AppendHistory(ctx context.Context, h *History) error {
	if m.failHistory != nil {
		return m.failHistory
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTx{m}.AppendHistory(ctx, h)
}

func (m *memStore) DeleteCartItems(_ context.Context, userID string, cartIDs, attrIDs []string) (int64, error) {
	if m.failCartCleanup != nil {
		return 0, m.failCartCleanup
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	match := func(id string, row cartRow) bool {
		if row.userID != userID {
			return false
		}
		keys, key := attrIDs, row.attributeID
		if len(cartIDs) > 0 {
			keys, key = cartIDs, id
		}
		for _, k := range keys {
			if k == key {
				return true
			}
		}
		return false
	}
	for id, row := range m.state.cart {
		if match(id, row) {
			delete(m.state.cart, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) Graph(_ context.Context, id string) (*Graph, error) {
	if m.failGraph != nil {
		return nil, m.failGraph
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	g := &Graph{Order: o, Customer: m.users[o.UserID]}
	g.Customer.ID = o.UserID
	for _, it := range m.state.items {
		if it.OrderID != id {
			continue
		}
		v := m.state.variants[it.AttributeID]
		g.Items = append(g.Items, GraphItem{Item: it, Variant: GraphVariant{
			ID: v.ID, Name: v.Name, SKU: v.SKU,
			Product: GraphProduct{ID: v.ProductID, Name: v.ProductName, Cooperative: GraphCooperative{
				ID: v.CooperativeID, Name: v.CooperativeName, OwnerID: m.owners[v.CooperativeID],
			}},
		}})
	}
	return g, nil
}

func (m *memStore) List(_ context.Context, f ListFilter) ([]Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Summary
	for _, o := range m.state.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, Summary{ID: o.ID, OrderNumber: o.OrderNumber, UserID: o.UserID, Status: o.Status})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out, nil
}

func (m *memStore) History(_ context.Context, orderID string) ([]History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []History
	for _, h := range m.state.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memStore) SetCourier(_ context.Context, id, courierID, tracking string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.CourierID, o.TrackingNumber = &courierID, tracking
	m.state.orders[id] = o
	return nil
}

func (m *memStore) SetPayment(_ context.Context, id string, p PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.PaymentStatus = p
	m.state.orders[id] = o
	return nil
}

type recordedEvents struct {
	mu  sync.Mutex
	got []Envelope
}

func (r *recordedEvents) Publish(_ context.Context, _ string, e Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
}

func (r *recordedEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.got {
		out = append(out, e.EventType)
	}
	return out
}
