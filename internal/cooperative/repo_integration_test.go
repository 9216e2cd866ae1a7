//go:build integration

package cooperative

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/coopmarket/internal/postgres/pgtest"
)

func TestPGRepoDeleteKeepsOrderedProducts(t *testing.T) {
	pool := pgtest.Start(t)
	repo := NewPGRepo(pool)
	ctx := context.Background()

	buyer := pgtest.Exec(t, pool,
		`INSERT INTO users (email, password_hash, role, status) VALUES ('buyer@example.com', 'x', 'customer', 'active') RETURNING id`)
	owner := pgtest.Exec(t, pool,
		`INSERT INTO users (email, password_hash, role, status) VALUES ('coop@example.com', 'x', 'cooperative', 'active') RETURNING id`)
	sold := pgtest.Exec(t, pool, `INSERT INTO cooperatives (owner_id, name) VALUES ($1, 'Cafeteros') RETURNING id`, owner)
	idle := pgtest.Exec(t, pool, `INSERT INTO cooperatives (owner_id, name) VALUES ($1, 'Apicultores') RETURNING id`, owner)
	product := pgtest.Exec(t, pool, `INSERT INTO products (cooperative_id, name) VALUES ($1, 'Café') RETURNING id`, sold)
	variant := pgtest.Exec(t, pool,
		`INSERT INTO product_attributes (product_id, name, sku, price, stock) VALUES ($1, '500g', 'X', 12.50, 10) RETURNING id`, product)
	pgtest.Exec(t, pool, `INSERT INTO products (cooperative_id, name) VALUES ($1, 'Miel') RETURNING id`, idle)
	orderID := pgtest.Exec(t, pool,
		`INSERT INTO orders (user_id, order_number, subtotal, total) VALUES ($1, 'ORD-20260101-00001', 12.50, 12.50) RETURNING id`, buyer)
	pgtest.Exec(t, pool,
		`INSERT INTO order_items (order_id, attribute_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, 1, 12.50) RETURNING id`,
		orderID, variant, product)

	ok, err := repo.Delete(ctx, sold)
	require.ErrorIs(t, err, ErrInUse)
	assert.False(t, ok)
	_, err = repo.GetByID(ctx, sold)
	require.NoError(t, err, "cooperative survives a refused delete")

	ok, err = repo.Delete(ctx, idle)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Delete(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.False(t, ok)
}
