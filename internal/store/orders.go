package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/storefront-api/internal/database"
	"github.com/safar/storefront-api/internal/models"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, user_id, status, total_amount, created_at, updated_at, version`

func scanOrder(row interface{ Scan(...any) error }, order *models.Order) error {
	return row.Scan(
		&order.ID,
		&order.UserID,
		&order.Status,
		&order.TotalAmount,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
}

type OrderPage struct {
	Orders     []models.Order
	NextCursor string
}

func InsertOrder(ctx context.Context, tx *sql.Tx, userID uuid.UUID, totalAmount decimal.Decimal) (*models.Order, error) {
	order := &models.Order{}

	query := `
		INSERT INTO orders (user_id, status, total_amount, created_at, updated_at, version)
		VALUES ($1, $2, $3, NOW(), NOW(), 1)
		RETURNING ` + orderColumns

	err := scanOrder(tx.QueryRowContext(ctx, query, userID, models.OrderStatusPending, totalAmount), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotCreated
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	return order, nil
}

func InsertOrderItem(ctx context.Context, tx *sql.Tx, item models.OrderItem) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO order_items (order_id, product_id, line_no, quantity, unit_price, subtotal, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		item.OrderID, item.ProductID, item.LineNo, item.Quantity, item.UnitPrice, item.Subtotal)
	if err != nil {
		return fmt.Errorf("create order item: %w", err)
	}

	return nil
}

func GetOrder(ctx context.Context, q Querier, id uuid.UUID) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	if err := scanOrder(q.QueryRowContext(ctx, query, id), order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	lines, err := ListOrderLines(ctx, q, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = lines[order.ID]
	if order.Items == nil {
		order.Items = []models.OrderLine{}
	}

	return order, nil
}

// LockOrder reads the order row FOR UPDATE without its items.
func LockOrder(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	if err := scanOrder(tx.QueryRowContext(ctx, query, id), order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	return order, nil
}

func UpdateOrderStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status models.OrderStatus, version int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1, version = version + 1, updated_at = NOW()
		 WHERE id = $2 AND version = $3`,
		status, id, version)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrOrderNotFound
	}

	return nil
}

// ListOrderLines loads the items of the given orders keyed by order id, each
// order's items in the order they were placed.
func ListOrderLines(ctx context.Context, q Querier, orderIDs ...uuid.UUID) (map[uuid.UUID][]models.OrderLine, error) {
	lines := make(map[uuid.UUID][]models.OrderLine, len(orderIDs))
	if len(orderIDs) == 0 {
		return lines, nil
	}

	ids := make([]string, len(orderIDs))
	for i, id := range orderIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT oi.order_id, oi.product_id, p.name, oi.quantity, oi.unit_price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1::uuid[])
		ORDER BY oi.order_id, oi.line_no`

	rows, err := q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID uuid.UUID
		var line models.OrderLine
		if err := rows.Scan(&orderID, &line.ProductID, &line.Name, &line.Quantity, &line.Price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		lines[orderID] = append(lines[orderID], line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

// ListOrders returns the user's orders newest first. A limit of 0 returns
// every order; otherwise at most limit orders after cursor and the cursor for
// the next page, if any.
func ListOrders(ctx context.Context, q Querier, userID uuid.UUID, cursor string, limit int) (*OrderPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1`
	args := []any{userID}

	if cursorData != nil {
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, cursorData.CreatedAt, cursorData.ID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit+1)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := limit > 0 && len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	ids := make([]uuid.UUID, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	lines, err := ListOrderLines(ctx, q, ids...)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Items = lines[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderLine{}
		}
	}

	page := &OrderPage{Orders: orders}
	if hasMore {
		last := orders[len(orders)-1]
		page.NextCursor = EncodeCursor(OrderCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return page, nil
}
