package service

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/safar/storefront-api/internal/models"
	"github.com/safar/storefront-api/internal/store"
	"github.com/shopspring/decimal"
)

// ProductPageSize caps ListProducts.
const ProductPageSize = 10

type CreateProductInput struct {
	Name  string           `json:"name" validate:"required,max=255"`
	Price *decimal.Decimal `json:"price" validate:"required"`
	Stock *int             `json:"stock" validate:"required,min=0,max=2147483647"`
}

type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

func (s *Catalog) CreateProduct(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := validatePrice(*in.Price); err != nil {
		return nil, err
	}

	return store.CreateProduct(ctx, s.db, in.Name, *in.Price, *in.Stock)
}

func (s *Catalog) ListProducts(ctx context.Context) ([]models.Product, error) {
	return store.ListProducts(ctx, s.db, ProductPageSize)
}

func (s *Catalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, invalid("product id must be a UUID")
	}

	return store.GetProduct(ctx, s.db, productID)
}
