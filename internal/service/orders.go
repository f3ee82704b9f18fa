package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/safar/storefront-api/internal/database"
	"github.com/safar/storefront-api/internal/models"
	"github.com/safar/storefront-api/internal/store"
	"github.com/shopspring/decimal"
)

// maxOrderTotal is the largest amount orders.total_amount NUMERIC(14,2) holds.
var maxOrderTotal = decimal.RequireFromString("999999999999.99")

type ListOrdersInput struct {
	Cursor string `json:"cursor"`
	Limit  int    `json:"limit" validate:"min=0,max=100"`
}

type SetStatusInput struct {
	OrderID string             `json:"orderId" validate:"required,uuid"`
	Status  models.OrderStatus `json:"status" validate:"required,oneof=PENDING SHIPPED DELIVERED CANCELLED"`
}

type Orders struct {
	db *sql.DB
}

func NewOrders(db *sql.DB) *Orders {
	return &Orders{db: db}
}

// PlaceOrder converts the user's cart into a PENDING order. Prices are copied
// into the order items and the cart is emptied in the same transaction.
func (s *Orders) PlaceOrder(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, s.db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		cart, err := store.LockCartByUser(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, database.ErrCartNotFound) {
				return database.ErrEmptyCart
			}
			return err
		}

		lines, err := store.ListCartLines(ctx, tx, cart.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return database.ErrEmptyCart
		}

		total := decimal.Zero
		for _, line := range lines {
			total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		if total.GreaterThan(maxOrderTotal) {
			return database.ErrOrderTooLarge
		}

		created, err := store.InsertOrder(ctx, tx, userID, total)
		if err != nil {
			return err
		}

		created.Items = make([]models.OrderLine, 0, len(lines))
		for i, line := range lines {
			err := store.InsertOrderItem(ctx, tx, models.OrderItem{
				OrderID:   created.ID,
				ProductID: line.ProductID,
				LineNo:    i,
				Quantity:  line.Quantity,
				UnitPrice: line.Price,
				Subtotal:  line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))),
			})
			if err != nil {
				return err
			}

			created.Items = append(created.Items, models.OrderLine{
				ProductID: line.ProductID,
				Name:      line.Name,
				Quantity:  line.Quantity,
				Price:     line.Price,
			})
		}

		if _, err := store.ClearCartItems(ctx, tx, cart.ID); err != nil {
			return err
		}

		order = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// ListOrders returns the user's orders newest first. Without a limit every
// order is returned.
func (s *Orders) ListOrders(ctx context.Context, userID uuid.UUID, in ListOrdersInput) (*store.OrderPage, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if _, err := store.DecodeCursor(in.Cursor); err != nil {
		return nil, invalid("cursor is malformed")
	}

	return store.ListOrders(ctx, s.db, userID, in.Cursor, in.Limit)
}

// SetStatus moves an order along its lifecycle. Setting the current status
// again changes nothing.
func (s *Orders) SetStatus(ctx context.Context, in SetStatusInput) (*models.Order, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	orderID := uuid.MustParse(in.OrderID)

	var order *models.Order

	err := database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		current, err := store.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if current.Status != in.Status {
			if !current.Status.CanTransitionTo(in.Status) {
				return database.ErrInvalidTransition
			}
			if err := store.UpdateOrderStatus(ctx, tx, orderID, in.Status, current.Version); err != nil {
				return err
			}
		}

		order, err = store.GetOrder(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}
