package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/storefront-api/internal/database"
	"github.com/safar/storefront-api/internal/models"
)

func GetCartByUser(ctx context.Context, q Querier, userID uuid.UUID) (*models.Cart, error) {
	return getCart(ctx, q, `SELECT id, user_id, created_at FROM carts WHERE user_id = $1`, userID)
}

// LockCartByUser is GetCartByUser with a row lock held until the transaction ends.
// Concurrent conversions of the same cart serialize on it.
func LockCartByUser(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*models.Cart, error) {
	return getCart(ctx, tx, `SELECT id, user_id, created_at FROM carts WHERE user_id = $1 FOR UPDATE`, userID)
}

func getCart(ctx context.Context, q Querier, query string, userID uuid.UUID) (*models.Cart, error) {
	cart := &models.Cart{}

	err := q.QueryRowContext(ctx, query, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCartNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	return cart, nil
}

// GetOrCreateCart returns the user's cart, creating it on first use. A racing
// creator loses on carts_user_id_key and both callers read the same row.
func GetOrCreateCart(ctx context.Context, q Querier, userID uuid.UUID) (*models.Cart, error) {
	cart, err := GetCartByUser(ctx, q, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, database.ErrCartNotFound) {
		return nil, err
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO carts (user_id, created_at) VALUES ($1, NOW())
		 ON CONFLICT (user_id) DO NOTHING`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}

	return GetCartByUser(ctx, q, userID)
}

func getCartItem(ctx context.Context, q Querier, cartID, productID uuid.UUID) (*models.CartItem, error) {
	item := &models.CartItem{}

	err := q.QueryRowContext(ctx,
		`SELECT id, cart_id, product_id, quantity, created_at
		 FROM cart_items
		 WHERE cart_id = $1 AND product_id = $2`,
		cartID, productID).Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.CreatedAt)
	if err != nil {
		return nil, err
	}

	return item, nil
}

// GetOrCreateCartItem returns the line for productID in the cart, creating it
// with quantity 0 when absent.
func GetOrCreateCartItem(ctx context.Context, q Querier, cartID, productID uuid.UUID) (*models.CartItem, error) {
	item, err := getCartItem(ctx, q, cartID, productID)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get cart item: %w", err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO cart_items (cart_id, product_id, quantity, created_at)
		 VALUES ($1, $2, 0, NOW())
		 ON CONFLICT (cart_id, product_id) DO NOTHING`,
		cartID, productID)
	if err != nil {
		return nil, fmt.Errorf("create cart item: %w", err)
	}

	item, err = getCartItem(ctx, q, cartID, productID)
	if err != nil {
		return nil, fmt.Errorf("get cart item: %w", err)
	}

	return item, nil
}

// IncrementCartItem adds quantity to the item and returns the new total.
func IncrementCartItem(ctx context.Context, q Querier, itemID uuid.UUID, quantity int) (int, error) {
	var total int

	err := q.QueryRowContext(ctx,
		`UPDATE cart_items SET quantity = quantity + $1 WHERE id = $2 RETURNING quantity`,
		quantity, itemID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("increment cart item: %w", err)
	}

	return total, nil
}

// ListCartLines joins the cart's items with the current product name and price.
func ListCartLines(ctx context.Context, q Querier, cartID uuid.UUID) ([]models.CartLine, error) {
	query := `
		SELECT ci.product_id, p.name, ci.quantity, p.price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		  AND ci.quantity > 0
		ORDER BY ci.created_at, ci.id`

	rows, err := q.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	lines := []models.CartLine{}
	for rows.Next() {
		var line models.CartLine
		if err := rows.Scan(&line.ProductID, &line.Name, &line.Quantity, &line.Price); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

func ClearCartItems(ctx context.Context, q Querier, cartID uuid.UUID) (int64, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return 0, fmt.Errorf("clear cart items: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return deleted, nil
}
