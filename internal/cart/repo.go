// Package cart keeps one cart per user, stored as rows of variant and
// quantity.
package cart

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/coopmarket/internal/postgres"
)

type Repository interface {
	Get(ctx context.Context, userID string) (Cart, error)
	// Add puts qty more units of the variant in the cart.
	Add(ctx context.Context, userID, attributeID string, qty int) (*Item, error)
	SetQuantity(ctx context.Context, userID, itemID string, qty int) (*Item, error)
	Remove(ctx context.Context, userID, itemID string) (bool, error)
	Clear(ctx context.Context, userID string) (int64, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const selectSQL = `
	SELECT ci.id, ci.attribute_id, ci.quantity, p.id, p.name, a.name, a.sku, a.price, a.stock,
	       c.id, c.name, ci.updated_at
	FROM cart_items ci
	JOIN product_attributes a ON a.id = ci.attribute_id
	JOIN products p ON p.id = a.product_id
	JOIN cooperatives c ON c.id = p.cooperative_id`

func scan(row pgx.CollectableRow) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.AttributeID, &it.Quantity, &it.ProductID, &it.ProductName, &it.VariantName,
		&it.SKU, &it.UnitPrice, &it.Stock, &it.CooperativeID, &it.CooperativeName, &it.UpdatedAt)
	it.LineTotal = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
	return it, err
}

func (r *PGRepo) Get(ctx context.Context, userID string) (Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, selectSQL+` WHERE ci.user_id = $1 ORDER BY ci.created_at`, userID)
	if err != nil {
		return Cart{}, err
	}
	items, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return Cart{}, err
	}
	return NewCart(items), nil
}

func (r *PGRepo) item(ctx context.Context, db postgres.DBTX, userID, itemID string) (*Item, error) {
	rows, _ := db.Query(ctx, selectSQL+` WHERE ci.user_id = $1 AND ci.id = $2`, userID, itemID)
	it, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if postgres.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &it, nil
}

// lockedStock reads the stock of a sellable variant, holding a share lock for
// the rest of the transaction.
func lockedStock(ctx context.Context, tx pgx.Tx, attributeID string) (int, error) {
	var stock int
	err := tx.QueryRow(ctx, `
		SELECT a.stock
		FROM product_attributes a JOIN products p ON p.id = a.product_id
		WHERE a.id = $1 AND p.is_active
		FOR SHARE OF a
	`, attributeID).Scan(&stock)
	if postgres.IsMissing(err) {
		return 0, ErrUnknownVariant
	}
	return stock, err
}

func (r *PGRepo) Add(ctx context.Context, userID, attributeID string, qty int) (*Item, error) {
	if qty < 1 {
		return nil, ErrBadQuantity
	}
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	var out *Item
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		stock, err := lockedStock(ctx, tx, attributeID)
		if err != nil {
			return err
		}
		var have int
		err = tx.QueryRow(ctx, `SELECT quantity FROM cart_items WHERE user_id = $1 AND attribute_id = $2`,
			userID, attributeID).Scan(&have)
		if err != nil && !postgres.IsNoRows(err) {
			return err
		}
		if have+qty > stock {
			return &StockError{AttributeID: attributeID, Requested: have + qty, Available: stock}
		}
		var id string
		err = tx.QueryRow(ctx, `
			INSERT INTO cart_items (user_id, attribute_id, quantity) VALUES ($1,$2,$3)
			ON CONFLICT (user_id, attribute_id)
			DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
			RETURNING id
		`, userID, attributeID, qty).Scan(&id)
		if err != nil {
			return err
		}
		out, err = r.item(ctx, tx, userID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PGRepo) SetQuantity(ctx context.Context, userID, itemID string, qty int) (*Item, error) {
	if qty < 1 {
		return nil, ErrBadQuantity
	}
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	var out *Item
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		cur, err := r.item(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}
		stock, err := lockedStock(ctx, tx, cur.AttributeID)
		if err != nil {
			return err
		}
		if qty > stock {
			return &StockError{AttributeID: cur.AttributeID, Requested: qty, Available: stock}
		}
		if _, err := tx.Exec(ctx, `UPDATE cart_items SET quantity = $3, updated_at = NOW() WHERE user_id = $1 AND id = $2`,
			userID, itemID, qty); err != nil {
			return err
		}
		out, err = r.item(ctx, tx, userID, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PGRepo) Remove(ctx context.Context, userID, itemID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND id = $2`, userID, itemID)
	if err != nil {
		if postgres.IsInvalidInput(err) {
			return false, nil
		}
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PGRepo) Clear(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, postgres.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
