// Package order places orders and drives them through their lifecycle.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/auth"
)

type Service struct {
	store  Store
	events Events
	now    func() time.Time

	tracer   trace.Tracer
	placed   metric.Int64Counter
	rejected metric.Int64Counter
}

func NewService(store Store, events Events, mp metric.MeterProvider, tp trace.TracerProvider) (*Service, error) {
	if events == nil {
		events = nopEvents{}
	}
	meter := mp.Meter("coopmarket/order")
	placed, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders committed"))
	if err != nil {
		return nil, errors.Wrap(err, "placed counter")
	}
	rejected, err := meter.Int64Counter("orders.rejected",
		metric.WithDescription("Order requests refused before or during commit"))
	if err != nil {
		return nil, errors.Wrap(err, "rejected counter")
	}
	return &Service{
		store:    store,
		events:   events,
		now:      time.Now,
		tracer:   tp.Tracer("coopmarket/order"),
		placed:   placed,
		rejected: rejected,
	}, nil
}

type line struct {
	PlaceItem
	variant Variant
}

// mergeItems sums quantities of repeated variants, keeping first-seen order.
func mergeItems(items []PlaceItem) ([]PlaceItem, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	idx := make(map[string]int, len(items))
	out := make([]PlaceItem, 0, len(items))
	for _, it := range items {
		if it.AttributeID == "" {
			return nil, apperr.Invalid("items: attribute_id is required")
		}
		if it.Quantity < 1 {
			return nil, &InvalidQuantityError{AttributeID: it.AttributeID, Quantity: it.Quantity}
		}
		if i, ok := idx[it.AttributeID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.AttributeID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

func (s *Service) reject(ctx context.Context, reason string) {
	s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// Place validates stock for every line, then inserts the header, the items and
// the conditional stock decrements in one transaction. Cart cleanup, history
// and the placed event run after commit and only log failures.
func (s *Service) Place(ctx context.Context, userID string, req PlaceRequest) (_ *OrderResponse, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Place")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()
	lg := zctx.From(ctx)

	items, err := mergeItems(req.Items)
	if err != nil {
		s.reject(ctx, "invalid")
		return nil, err
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.AttributeID
	}
	variants, err := s.store.Variants(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load variants")
	}

	lines := make([]line, len(items))
	subtotal := decimal.Zero
	for i, it := range items {
		v, ok := variants[it.AttributeID]
		if !ok || !v.Active {
			s.reject(ctx, "unknown_variant")
			return nil, &UnknownVariantError{AttributeID: it.AttributeID}
		}
		if v.Stock < it.Quantity {
			s.reject(ctx, "insufficient_stock")
			return nil, &InsufficientStockError{AttributeID: it.AttributeID, Requested: it.Quantity, Available: v.Stock}
		}
		lines[i] = line{PlaceItem: it, variant: v}
		subtotal = subtotal.Add(v.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	fee := decimal.Zero
	var courierID *string
	if req.CourierID != "" {
		if fee, err = s.store.CourierFee(ctx, req.CourierID); err != nil {
			return nil, err
		}
		courierID = &req.CourierID
	}

	now := s.now()
	from, to := DayWindow(now)
	count, err := s.store.CountOrders(ctx, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "count orders")
	}

	o := &Order{
		UserID:          userID,
		OrderNumber:     Number(now, count),
		Status:          StatusPending,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   PaymentUnpaid,
		Subtotal:        subtotal.Round(2),
		ShippingFee:     fee.Round(2),
		Total:           subtotal.Add(fee).Round(2),
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		CourierID:       courierID,
	}
	if len(o.ShippingAddress) == 0 {
		o.ShippingAddress = []byte(`{}`)
	}
	placed := make([]Item, 0, len(lines))

	err = s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.InsertOrder(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}
		for _, l := range lines {
			it := Item{
				OrderID:     o.ID,
				AttributeID: l.AttributeID,
				ProductID:   l.variant.ProductID,
				Quantity:    l.Quantity,
				UnitPrice:   l.variant.Price,
				Status:      ItemPending,
			}
			if err := tx.InsertItem(ctx, &it); err != nil {
				return errors.Wrap(err, "insert item")
			}
			ok, available, err := tx.DecrementStock(ctx, l.AttributeID, l.Quantity)
			if err != nil {
				return errors.Wrap(err, "decrement stock")
			}
			if !ok {
				return &InsufficientStockError{AttributeID: l.AttributeID, Requested: l.Quantity, Available: available}
			}
			placed = append(placed, it)
		}
		return nil
	})
	if err != nil {
		var stockErr *InsufficientStockError
		if errors.As(err, &stockErr) {
			s.reject(ctx, "insufficient_stock")
		}
		return nil, err
	}
	s.placed.Add(ctx, 1)
	span.SetAttributes(attribute.String("order.id", o.ID), attribute.String("order.number", o.OrderNumber))
	lg.Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.Int("items", len(placed)),
		zap.String("total", o.Total.String()),
	)

	// The order is committed; nothing below may fail the request.
	bg := context.WithoutCancel(ctx)
	if n, err := s.store.DeleteCartItems(bg, userID, req.CartItemIDs, ids); err != nil {
		lg.Warn("Cart cleanup failed", zap.String("order_id", o.ID), zap.Error(err))
	} else {
		lg.Debug("Cart cleaned", zap.Int64("rows", n))
	}
	if err := s.store.AppendHistory(bg, &History{
		OrderID: o.ID, Status: StatusPending, Note: "order placed", ChangedBy: &userID,
	}); err != nil {
		lg.Warn("Order history insert failed", zap.String("order_id", o.ID), zap.Error(err))
	}
	s.emitPlaced(bg, o, placed)

	g, err := s.store.Graph(bg, o.ID)
	if err != nil {
		lg.Warn("Order refetch failed, answering from request data", zap.String("order_id", o.ID), zap.Error(err))
		g = localGraph(o, userID, lines, placed)
	}
	resp := Flatten(g)
	return &resp, nil
}

func localGraph(o *Order, userID string, lines []line, items []Item) *Graph {
	g := &Graph{Order: *o, Customer: Customer{ID: userID}}
	for i, it := range items {
		v := lines[i].variant
		g.Items = append(g.Items, GraphItem{Item: it, Variant: GraphVariant{
			ID: v.ID, Name: v.Name, SKU: v.SKU,
			Product: GraphProduct{ID: v.ProductID, Name: v.ProductName,
				Cooperative: GraphCooperative{ID: v.CooperativeID, Name: v.CooperativeName}},
		}})
	}
	return g
}

func (s *Service) emitPlaced(ctx context.Context, o *Order, items []Item) {
	p := PlacedPayload{OrderID: o.ID, OrderNumber: o.OrderNumber, UserID: o.UserID, Total: o.Total}
	for _, it := range items {
		p.Items = append(p.Items, PlacedItem{AttributeID: it.AttributeID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	env, err := newEnvelope(EventOrderPlaced, o.ID, s.now(), p)
	if err != nil {
		zctx.From(ctx).Warn("Encode order event", zap.Error(err))
		return
	}
	s.events.Publish(ctx, o.ID, env)
}

// authorize lets admins, the buyer and cooperatives selling in the order see it.
func authorize(g *Graph, caller auth.Identity) error {
	switch {
	case caller.Is(auth.RoleAdmin):
		return nil
	case g.Order.UserID == caller.UserID:
		return nil
	case caller.Is(auth.RoleCooperative):
		for _, it := range g.Items {
			if it.Variant.Product.Cooperative.OwnerID == caller.UserID {
				return nil
			}
		}
	}
	return ErrForbidden
}

func (s *Service) graphFor(ctx context.Context, id string, caller auth.Identity) (*Graph, error) {
	g, err := s.store.Graph(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(g, caller); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) Get(ctx context.Context, id string, caller auth.Identity) (*OrderResponse, error) {
	g, err := s.graphFor(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	resp := Flatten(g)
	return &resp, nil
}

// List scopes the listing by role: admins see everything, cooperatives the
// orders containing their products and everyone else their own orders.
func (s *Service) List(ctx context.Context, caller auth.Identity, status Status, limit, offset int) ([]Summary, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	f := ListFilter{Status: status, Limit: limit, Offset: offset}
	switch {
	case caller.Is(auth.RoleAdmin):
	case caller.Is(auth.RoleCooperative):
		f.CooperativeOwnerID = caller.UserID
	default:
		f.UserID = caller.UserID
	}
	return s.store.List(ctx, f)
}

func (s *Service) History(ctx context.Context, id string, caller auth.Identity) ([]History, error) {
	if _, err := s.graphFor(ctx, id, caller); err != nil {
		return nil, err
	}
	return s.store.History(ctx, id)
}

// UpdateStatus applies an admin or cooperative status change.
func (s *Service) UpdateStatus(ctx context.Context, id string, caller auth.Identity, to Status, note string) (*OrderResponse, error) {
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}
	g, err := s.store.Graph(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mayManage(g, caller); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, caller, to, note, nil)
}

// mayManage lets admins change any order and a cooperative only orders whose
// every item it sells. Status changes apply to the whole order, so orders
// shared between cooperatives are left to admins.
func mayManage(g *Graph, caller auth.Identity) error {
	if caller.Is(auth.RoleAdmin) {
		return nil
	}
	if !caller.Is(auth.RoleCooperative) {
		return ErrForbidden
	}
	var own, foreign int
	for _, it := range g.Items {
		if it.Variant.Product.Cooperative.OwnerID == caller.UserID {
			own++
		} else {
			foreign++
		}
	}
	switch {
	case own == 0:
		return ErrForbidden
	case foreign > 0:
		return ErrSharedOrder
	}
	return nil
}

// Cancel lets the buyer withdraw an order that is still pending.
func (s *Service) Cancel(ctx context.Context, id string, caller auth.Identity, reason string) (*OrderResponse, error) {
	g, err := s.graphFor(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if g.Order.UserID != caller.UserID && !caller.Is(auth.RoleAdmin) {
		return nil, ErrForbidden
	}
	if reason == "" {
		reason = "cancelled by customer"
	}
	return s.transition(ctx, id, caller, StatusCancelled, reason, func(o *Order) error {
		if o.Status != StatusPending {
			return ErrNotCancellable
		}
		return nil
	})
}

// transition locks the order, checks the lifecycle table and applies the side
// effects of the target status in one transaction. Cancelling puts every
// uncancelled item back in stock.
func (s *Service) transition(ctx context.Context, id string, caller auth.Identity, to Status, note string, guard func(*Order) error) (*OrderResponse, error) {
	var from Status
	changedBy := caller.UserID
	err := s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(o); err != nil {
				return err
			}
		}
		from = o.Status
		if !CanTransition(from, to) {
			return &TransitionError{From: from, To: to}
		}
		switch to {
		case StatusCancelled:
			items, err := tx.Items(ctx, id)
			if err != nil {
				return err
			}
			for _, it := range items {
				if it.Status == ItemCancelled {
					continue
				}
				if err := tx.IncrementStock(ctx, it.AttributeID, it.Quantity); err != nil {
					return errors.Wrap(err, "restock")
				}
			}
			if err := tx.SetItemsStatus(ctx, id, ItemCancelled); err != nil {
				return err
			}
		case StatusDelivered:
			if err := tx.SetItemsStatus(ctx, id, ItemFulfilled); err != nil {
				return err
			}
		}
		if err := tx.SetStatus(ctx, id, to); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, &History{OrderID: id, Status: to, Note: note, ChangedBy: &changedBy})
	})
	if err != nil {
		return nil, err
	}
	lg := zctx.From(ctx)
	lg.Info("Order status changed",
		zap.String("order_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	bg := context.WithoutCancel(ctx)
	if env, err := newEnvelope(EventOrderStatusChanged, id, s.now(), StatusChangedPayload{
		OrderID: id, From: from, To: to, Note: note, ChangedBy: &changedBy,
	}); err == nil {
		s.events.Publish(bg, id, env)
	}

	g, err := s.store.Graph(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := Flatten(g)
	return &resp, nil
}

func (s *Service) AssignCourier(ctx context.Context, id, courierID, tracking string) (*OrderResponse, error) {
	if courierID == "" {
		return nil, apperr.Invalid("courier_id is required")
	}
	if _, err := s.store.CourierFee(ctx, courierID); err != nil {
		return nil, err
	}
	if err := s.store.SetCourier(ctx, id, courierID, tracking); err != nil {
		return nil, err
	}
	g, err := s.store.Graph(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := Flatten(g)
	return &resp, nil
}

func (s *Service) SetPayment(ctx context.Context, id string, p PaymentStatus) (*OrderResponse, error) {
	if !p.Valid() {
		return nil, ErrInvalidPayment
	}
	if err := s.store.SetPayment(ctx, id, p); err != nil {
		return nil, err
	}
	g, err := s.store.Graph(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := Flatten(g)
	return &resp, nil
}
