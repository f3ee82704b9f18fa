package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/safar/storefront-api/internal/database"
	"github.com/safar/storefront-api/internal/models"
	"github.com/safar/storefront-api/internal/store"
)

type AddProductInput struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"min=1,max=2147483647"`
}

type Carts struct {
	db *sql.DB
}

func NewCarts(db *sql.DB) *Carts {
	return &Carts{db: db}
}

// GetOrCreateCart also backs cart creation: a user has at most one cart.
func (s *Carts) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := store.GetOrCreateCart(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	cart.Items, err = store.ListCartLines(ctx, s.db, cart.ID)
	if err != nil {
		return nil, err
	}

	return cart, nil
}

func (s *Carts) GetOrCreateCartItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	return store.GetOrCreateCartItem(ctx, s.db, cartID, productID)
}

// AddProduct moves quantity units of a product from stock into the user's
// cart. The stock check, the decrement and the cart update commit together.
// Locks are taken product first, then cart.
func (s *Carts) AddProduct(ctx context.Context, userID uuid.UUID, in AddProductInput) error {
	if err := validateStruct(in); err != nil {
		return err
	}
	productID := uuid.MustParse(in.ProductID)

	return database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := store.ReserveStock(ctx, tx, productID, in.Quantity); err != nil {
			return err
		}

		if err := store.DecrementStock(ctx, tx, productID, in.Quantity); err != nil {
			return err
		}

		if _, err := store.GetOrCreateCart(ctx, tx, userID); err != nil {
			return err
		}

		// Serializes with PlaceOrder, which clears items under the same lock.
		cart, err := store.LockCartByUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		item, err := store.GetOrCreateCartItem(ctx, tx, cart.ID, productID)
		if err != nil {
			return err
		}

		_, err = store.IncrementCartItem(ctx, tx, item.ID, in.Quantity)
		return err
	})
}

// GetCart returns the user's cart with current product names and prices.
func (s *Carts) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := store.GetCartByUser(ctx, s.db, userID)
	if err != nil {
		if errors.Is(err, database.ErrCartNotFound) {
			return nil, database.ErrEmptyCart
		}
		return nil, err
	}

	cart.Items, err = store.ListCartLines(ctx, s.db, cart.ID)
	if err != nil {
		return nil, err
	}

	return cart, nil
}
