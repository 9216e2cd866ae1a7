package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/coopmarket/internal/postgres"
)

// PGStore implements Store on PostgreSQL.
type PGStore struct{ db *pgxpool.Pool }

func NewPGStore(db *pgxpool.Pool) *PGStore { return &PGStore{db: db} }

var _ Store = (*PGStore)(nil)

func (r *PGStore) Variants(ctx context.Context, ids []string) (map[string]Variant, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.product_id, p.name, a.name, a.sku, a.price, a.stock, p.is_active, c.id, c.name
		FROM product_attributes a
		JOIN products p ON p.id = a.product_id
		JOIN cooperatives c ON c.id = p.cooperative_id
		WHERE a.id::text = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Variant, error) {
		var v Variant
		err := row.Scan(&v.ID, &v.ProductID, &v.ProductName, &v.Name, &v.SKU, &v.Price, &v.Stock,
			&v.Active, &v.CooperativeID, &v.CooperativeName)
		return v, err
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]Variant, len(list))
	for _, v := range list {
		out[v.ID] = v
	}
	return out, nil
}

func (r *PGStore) CourierFee(ctx context.Context, courierID string) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	var fee decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT base_fee FROM couriers WHERE id = $1 AND is_active`, courierID).Scan(&fee)
	if postgres.IsMissing(err) {
		return decimal.Zero, ErrCourierNotFound
	}
	return fee, err
}

func (r *PGStore) CountOrders(ctx context.Context, from, to time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&n)
	return n, err
}

func (r *PGStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	return postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(pgTx{tx: tx})
	})
}

type pgTx struct{ tx pgx.Tx }

func (t pgTx) InsertOrder(ctx context.Context, o *Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, order_number, status, payment_method, payment_status,
		                    subtotal, shipping_fee, total, shipping_address, notes, courier_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id, created_at, updated_at
	`, o.UserID, o.OrderNumber, o.Status, o.PaymentMethod, o.PaymentStatus,
		o.Subtotal, o.ShippingFee, o.Total, string(o.ShippingAddress), o.Notes, o.CourierID,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return ErrNumberTaken
	}
	return err
}

func (t pgTx) InsertItem(ctx context.Context, it *Item) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO order_items (order_id, attribute_id, product_id, quantity, unit_price, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, it.OrderID, it.AttributeID, it.ProductID, it.Quantity, it.UnitPrice, it.Status).Scan(&it.ID)
}

func (t pgTx) DecrementStock(ctx context.Context, attributeID string, qty int) (bool, int, error) {
	cmd, err := t.tx.Exec(ctx, `
		UPDATE product_attributes
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`, attributeID, qty)
	if err != nil {
		return false, 0, err
	}
	if cmd.RowsAffected() == 1 {
		return true, 0, nil
	}
	var available int
	if err := t.tx.QueryRow(ctx, `SELECT stock FROM product_attributes WHERE id = $1`, attributeID).Scan(&available); err != nil && !postgres.IsNoRows(err) {
		return false, 0, err
	}
	return false, available, nil
}

func (t pgTx) IncrementStock(ctx context.Context, attributeID string, qty int) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE product_attributes SET stock = stock + $2, updated_at = NOW() WHERE id = $1
	`, attributeID, qty)
	return err
}

const orderColumns = `o.id, o.user_id, o.order_number, o.status, o.payment_method, o.payment_status,
	o.subtotal, o.shipping_fee, o.total, o.shipping_address, o.notes, o.courier_id, o.tracking_number,
	o.created_at, o.updated_at`

func scanOrder(row pgx.Row, o *Order, extra ...any) error {
	dst := []any{&o.ID, &o.UserID, &o.OrderNumber, &o.Status, &o.PaymentMethod, &o.PaymentStatus,
		&o.Subtotal, &o.ShippingFee, &o.Total, &o.ShippingAddress, &o.Notes, &o.CourierID, &o.TrackingNumber,
		&o.CreatedAt, &o.UpdatedAt}
	return row.Scan(append(dst, extra...)...)
}

func (t pgTx) LockOrder(ctx context.Context, id string) (*Order, error) {
	var o Order
	err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, id), &o)
	if err != nil {
		if postgres.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (t pgTx) Items(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, order_id, attribute_id, product_id, quantity, unit_price, status
		FROM order_items WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var it Item
		err := row.Scan(&it.ID, &it.OrderID, &it.AttributeID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Status)
		return it, err
	})
}

func (t pgTx) SetStatus(ctx context.Context, id string, s Status) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, s)
	return err
}

func (t pgTx) SetItemsStatus(ctx context.Context, orderID string, s ItemStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE order_items SET status = $2 WHERE order_id = $1 AND status <> 'cancelled'`, orderID, s)
	return err
}

func appendHistory(ctx context.Context, db postgres.DBTX, h *History) error {
	return db.QueryRow(ctx, `
		INSERT INTO order_history (order_id, status, note, changed_by)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at
	`, h.OrderID, h.Status, h.Note, h.ChangedBy).Scan(&h.ID, &h.CreatedAt)
}

func (t pgTx) AppendHistory(ctx context.Context, h *History) error {
	return appendHistory(ctx, t.tx, h)
}

func (r *PGStore) AppendHistory(ctx context.Context, h *History) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()
	return appendHistory(ctx, r.db, h)
}

// DeleteCartItems removes the named cart rows of the user, or, when none are
// named, the user's cart rows for the ordered variants.
func (r *PGStore) DeleteCartItems(ctx context.Context, userID string, cartItemIDs, attributeIDs []string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	sql, ids := `DELETE FROM cart_items WHERE user_id = $1 AND attribute_id::text = ANY($2)`, attributeIDs
	if len(cartItemIDs) > 0 {
		sql, ids = `DELETE FROM cart_items WHERE user_id = $1 AND id::text = ANY($2)`, cartItemIDs
	}
	cmd, err := r.db.Exec(ctx, sql, userID, ids)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *PGStore) Graph(ctx context.Context, id string) (*Graph, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	var g Graph
	err := scanOrder(r.db.QueryRow(ctx, `
		SELECT `+orderColumns+`, u.id, u.full_name, u.email
		FROM orders o JOIN users u ON u.id = o.user_id
		WHERE o.id = $1
	`, id), &g.Order, &g.Customer.ID, &g.Customer.FullName, &g.Customer.Email)
	if err != nil {
		if postgres.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "order")
	}

	rows, err := r.db.Query(ctx, `
		SELECT i.id, i.order_id, i.attribute_id, i.product_id, i.quantity, i.unit_price, i.status,
		       a.id, a.name, a.sku, p.id, p.name, c.id, c.name, c.owner_id
		FROM order_items i
		JOIN product_attributes a ON a.id = i.attribute_id
		JOIN products p ON p.id = i.product_id
		JOIN cooperatives c ON c.id = p.cooperative_id
		WHERE i.order_id = $1
		ORDER BY c.name, p.name, a.name
	`, id)
	if err != nil {
		return nil, errors.Wrap(err, "items")
	}
	g.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (GraphItem, error) {
		var gi GraphItem
		it, v := &gi.Item, &gi.Variant
		err := row.Scan(&it.ID, &it.OrderID, &it.AttributeID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Status,
			&v.ID, &v.Name, &v.SKU, &v.Product.ID, &v.Product.Name,
			&v.Product.Cooperative.ID, &v.Product.Cooperative.Name, &v.Product.Cooperative.OwnerID)
		return gi, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "items")
	}
	return &g, nil
}

func (r *PGStore) List(ctx context.Context, f ListFilter) ([]Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	limit, offset := postgres.Clamp(f.Limit, f.Offset)
	rows, err := r.db.Query(ctx, `
		SELECT o.id, o.order_number, o.user_id, o.status, o.payment_status, o.total,
		       (SELECT COUNT(*) FROM order_items i WHERE i.order_id = o.id), o.created_at
		FROM orders o
		WHERE ($1 = '' OR o.user_id::text = $1)
		  AND ($2 = '' OR EXISTS (
		        SELECT 1 FROM order_items i
		        JOIN products p ON p.id = i.product_id
		        JOIN cooperatives c ON c.id = p.cooperative_id
		        WHERE i.order_id = o.id AND c.owner_id::text = $2))
		  AND ($3 = '' OR o.status = $3)
		ORDER BY o.created_at DESC
		LIMIT $4 OFFSET $5
	`, f.UserID, f.CooperativeOwnerID, string(f.Status), limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Summary, error) {
		var s Summary
		err := row.Scan(&s.ID, &s.OrderNumber, &s.UserID, &s.Status, &s.PaymentStatus, &s.Total, &s.ItemCount, &s.CreatedAt)
		return s, err
	})
}

func (r *PGStore) History(ctx context.Context, orderID string) ([]History, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, status, note, changed_by, created_at
		FROM order_history WHERE order_id = $1 ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (History, error) {
		var h History
		err := row.Scan(&h.ID, &h.OrderID, &h.Status, &h.Note, &h.ChangedBy, &h.CreatedAt)
		return h, err
	})
}

func (r *PGStore) SetCourier(ctx context.Context, id, courierID, tracking string) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `
		UPDATE orders
		SET courier_id = $2, tracking_number = COALESCE(NULLIF($3,''), tracking_number), updated_at = NOW()
		WHERE id = $1
	`, id, courierID, tracking)
	if err != nil {
		if postgres.IsInvalidInput(err) {
			return ErrNotFound
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGStore) SetPayment(ctx context.Context, id string, p PaymentStatus) error {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1`, id, p)
	if err != nil {
		if postgres.IsInvalidInput(err) {
			return ErrNotFound
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
