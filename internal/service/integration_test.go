//go:build integration

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/safar/storefront-api/internal/auth"
	"github.com/safar/storefront-api/internal/database"
	"github.com/safar/storefront-api/internal/models"
	"github.com/safar/storefront-api/internal/store"
	"github.com/shopspring/decimal"
)

type fixture struct {
	db      *sql.DB
	issuer  *auth.Issuer
	users   *Users
	catalog *Catalog
	carts   *Carts
	orders  *Orders
}

func newFixture(t *testing.T) *fixture {
	db := setupTestDB(t)
	issuer := auth.NewIssuer("integration-secret", time.Hour)

	return &fixture{
		db:      db,
		issuer:  issuer,
		users:   NewUsers(db, issuer),
		catalog: NewCatalog(db),
		carts:   NewCarts(db),
		orders:  NewOrders(db),
	}
}

func (f *fixture) signup(t *testing.T, email string) *models.User {
	t.Helper()

	result, err := f.users.Signup(context.Background(), SignupInput{Name: "Test User", Email: email, Password: "password1"})
	if err != nil {
		t.Fatalf("Signup %s: %v", email, err)
	}
	return result.User
}

func (f *fixture) product(t *testing.T, name, price string, stock int) *models.Product {
	t.Helper()

	p := decimal.RequireFromString(price)
	product, err := f.catalog.CreateProduct(context.Background(), CreateProductInput{Name: name, Price: &p, Stock: &stock})
	if err != nil {
		t.Fatalf("Create product %s: %v", name, err)
	}
	return product
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()

	product, err := store.GetProduct(context.Background(), f.db, id)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	return product.Stock
}

func TestSignupAndSignin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.users.Signup(ctx, SignupInput{Name: "Ann", Email: "ann@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	claims, err := f.issuer.Verify(result.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.ID != result.User.ID {
		t.Errorf("Expected token id %s, got %s", result.User.ID, claims.ID)
	}

	stored, err := store.GetUser(ctx, f.db, result.User.ID)
	if err != nil {
		t.Fatalf("Get user: %v", err)
	}
	if stored.PasswordHash == "password1" {
		t.Error("Password stored in plaintext")
	}

	_, err = f.users.Signup(ctx, SignupInput{Name: "Ann", Email: "ann@example.com", Password: "password2"})
	if !errors.Is(err, database.ErrEmailTaken) {
		t.Errorf("Expected ErrEmailTaken, got %v", err)
	}

	if _, err := f.users.Signin(ctx, SigninInput{Email: "ann@example.com", Password: "password1"}); err != nil {
		t.Errorf("Signin: %v", err)
	}
	if _, err := f.users.Signin(ctx, SigninInput{Email: "ann@example.com", Password: "password2"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAddProductStockAccounting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "cart@example.com")
	product := f.product(t, "Widget", "10", 5)

	in := func(q int) AddProductInput { return AddProductInput{ProductID: product.ID.String(), Quantity: q} }

	if err := f.carts.AddProduct(ctx, user.ID, in(6)); !errors.Is(err, database.ErrInsufficientStock) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}
	if got := f.stock(t, product.ID); got != 5 {
		t.Fatalf("Stock should remain 5, got %d", got)
	}

	if err := f.carts.AddProduct(ctx, user.ID, in(1)); err != nil {
		t.Fatalf("AddProduct: %v", err)
	}
	if err := f.carts.AddProduct(ctx, user.ID, in(2)); err != nil {
		t.Fatalf("AddProduct: %v", err)
	}

	if got := f.stock(t, product.ID); got != 2 {
		t.Errorf("Expected stock 2, got %d", got)
	}

	cart, err := f.carts.GetCart(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("Expected one cart line, got %d", len(cart.Items))
	}

	line := cart.Items[0]
	if line.Name != "Widget" || line.Quantity != 3 || !line.Price.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Unexpected cart line %+v", line)
	}

	err = f.carts.AddProduct(ctx, user.ID, AddProductInput{ProductID: uuid.NewString(), Quantity: 1})
	if !errors.Is(err, database.ErrProductNotFound) {
		t.Errorf("Expected ErrProductNotFound, got %v", err)
	}
}

func TestConcurrentAddProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "race@example.com")
	product := f.product(t, "Limited", "5.00", 10)

	concurrency := 8
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.carts.AddProduct(ctx, user.ID, AddProductInput{ProductID: product.ID.String(), Quantity: 2})
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, database.ErrInsufficientStock):
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != 5 {
		t.Errorf("Expected 5 successful adds, got %d", successCount)
	}
	if got := f.stock(t, product.ID); got != 0 {
		t.Errorf("Expected stock 0, got %d", got)
	}

	cart, err := f.carts.GetCart(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 10 {
		t.Errorf("Expected one line with quantity 10, got %+v", cart.Items)
	}
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "order@example.com")
	widget := f.product(t, "Widget", "0.10", 10)
	gadget := f.product(t, "Gadget", "19.99", 10)

	if _, err := f.orders.PlaceOrder(ctx, user.ID); !errors.Is(err, database.ErrEmptyCart) {
		t.Fatalf("Expected ErrEmptyCart without cart, got %v", err)
	}

	for _, add := range []AddProductInput{
		{ProductID: widget.ID.String(), Quantity: 3},
		{ProductID: gadget.ID.String(), Quantity: 2},
	} {
		if err := f.carts.AddProduct(ctx, user.ID, add); err != nil {
			t.Fatalf("AddProduct: %v", err)
		}
	}

	order, err := f.orders.PlaceOrder(ctx, user.ID)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if !order.TotalAmount.Equal(decimal.RequireFromString("40.28")) {
		t.Errorf("Expected total 40.28, got %s", order.TotalAmount)
	}
	if order.Status != models.OrderStatusPending {
		t.Errorf("Expected PENDING, got %s", order.Status)
	}

	cart, err := f.carts.GetCart(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Errorf("Cart should be empty after ordering, got %+v", cart.Items)
	}

	if _, err := f.orders.PlaceOrder(ctx, user.ID); !errors.Is(err, database.ErrEmptyCart) {
		t.Errorf("Expected ErrEmptyCart on emptied cart, got %v", err)
	}

	// Later price changes do not rewrite history.
	if _, err := f.db.ExecContext(ctx, `UPDATE products SET price = 99 WHERE id = $1`, widget.ID); err != nil {
		t.Fatalf("Update price: %v", err)
	}

	page, err := f.orders.ListOrders(ctx, user.ID, ListOrdersInput{})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(page.Orders) != 1 {
		t.Fatalf("Expected 1 order, got %d", len(page.Orders))
	}
	for _, item := range page.Orders[0].Items {
		if item.ProductID == widget.ID && !item.Price.Equal(decimal.RequireFromString("0.10")) {
			t.Errorf("Expected snapshotted price 0.10, got %s", item.Price)
		}
	}
}

func TestConcurrentPlaceOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "double@example.com")
	product := f.product(t, "Widget", "10", 10)

	if err := f.carts.AddProduct(ctx, user.ID, AddProductInput{ProductID: product.ID.String(), Quantity: 2}); err != nil {
		t.Fatalf("AddProduct: %v", err)
	}

	concurrency := 4
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orders.PlaceOrder(ctx, user.ID)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, database.ErrEmptyCart):
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != 1 {
		t.Errorf("Expected exactly one order, got %d", successCount)
	}

	page, err := f.orders.ListOrders(ctx, user.ID, ListOrdersInput{})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(page.Orders) != 1 {
		t.Errorf("Expected 1 stored order, got %d", len(page.Orders))
	}
}

func TestListProductsCapsAtPageSize(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < ProductPageSize+3; i++ {
		f.product(t, fmt.Sprintf("Product %d", i), "1.00", 1)
	}

	products, err := f.catalog.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != ProductPageSize {
		t.Errorf("Expected %d products, got %d", ProductPageSize, len(products))
	}

	if _, err := f.catalog.GetProduct(context.Background(), uuid.NewString()); !errors.Is(err, database.ErrProductNotFound) {
		t.Errorf("Expected ErrProductNotFound, got %v", err)
	}
}

func TestSetStatusLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "status@example.com")
	product := f.product(t, "Widget", "10", 5)

	if err := f.carts.AddProduct(ctx, user.ID, AddProductInput{ProductID: product.ID.String(), Quantity: 1}); err != nil {
		t.Fatalf("AddProduct: %v", err)
	}
	order, err := f.orders.PlaceOrder(ctx, user.ID)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	set := func(status models.OrderStatus) error {
		_, err := f.orders.SetStatus(ctx, SetStatusInput{OrderID: order.ID.String(), Status: status})
		return err
	}

	if err := set("LOST"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if err := set(models.OrderStatusDelivered); !errors.Is(err, database.ErrInvalidTransition) {
		t.Errorf("PENDING to DELIVERED: expected ErrInvalidTransition, got %v", err)
	}
	if err := set(models.OrderStatusShipped); err != nil {
		t.Fatalf("PENDING to SHIPPED: %v", err)
	}
	if err := set(models.OrderStatusShipped); err != nil {
		t.Errorf("same status should be a no-op, got %v", err)
	}
	if err := set(models.OrderStatusDelivered); err != nil {
		t.Fatalf("SHIPPED to DELIVERED: %v", err)
	}
	if err := set(models.OrderStatusPending); !errors.Is(err, database.ErrInvalidTransition) {
		t.Errorf("DELIVERED to PENDING: expected ErrInvalidTransition, got %v", err)
	}

	got, err := store.GetOrder(ctx, f.db, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Status != models.OrderStatusDelivered {
		t.Errorf("Expected DELIVERED, got %s", got.Status)
	}

	_, err = f.orders.SetStatus(ctx, SetStatusInput{OrderID: uuid.NewString(), Status: models.OrderStatusShipped})
	if !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestListOrdersCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "pages@example.com")
	product := f.product(t, "Widget", "1", 100)

	for i := 0; i < 15; i++ {
		if err := f.carts.AddProduct(ctx, user.ID, AddProductInput{ProductID: product.ID.String(), Quantity: 1}); err != nil {
			t.Fatalf("AddProduct %d: %v", i, err)
		}
		if _, err := f.orders.PlaceOrder(ctx, user.ID); err != nil {
			t.Fatalf("PlaceOrder %d: %v", i, err)
		}
	}

	page1, err := f.orders.ListOrders(ctx, user.ID, ListOrdersInput{Limit: 10})
	if err != nil {
		t.Fatalf("List orders page 1: %v", err)
	}
	if len(page1.Orders) != 10 || page1.NextCursor == "" {
		t.Fatalf("Page 1: expected 10 orders and a cursor, got %d, %q", len(page1.Orders), page1.NextCursor)
	}

	page2, err := f.orders.ListOrders(ctx, user.ID, ListOrdersInput{Limit: 10, Cursor: page1.NextCursor})
	if err != nil {
		t.Fatalf("List orders page 2: %v", err)
	}
	if len(page2.Orders) != 5 || page2.NextCursor != "" {
		t.Errorf("Page 2: expected 5 orders and no cursor, got %d, %q", len(page2.Orders), page2.NextCursor)
	}

	seen := map[uuid.UUID]bool{}
	for _, o := range append(page1.Orders, page2.Orders...) {
		if seen[o.ID] {
			t.Errorf("Order %s returned twice", o.ID)
		}
		seen[o.ID] = true
	}
}

func TestOrderItemsKeepCartOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "sequence@example.com")

	var want []uuid.UUID
	for i, name := range []string{"Delta", "Alpha", "Charlie", "Bravo"} {
		product := f.product(t, name, fmt.Sprintf("%d.00", i+1), 5)
		if err := f.carts.AddProduct(ctx, user.ID, AddProductInput{ProductID: product.ID.String(), Quantity: 1}); err != nil {
			t.Fatalf("AddProduct %s: %v", name, err)
		}
		want = append(want, product.ID)
	}

	cart, err := f.carts.GetCart(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}

	order, err := f.orders.PlaceOrder(ctx, user.ID)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	page, err := f.orders.ListOrders(ctx, user.ID, ListOrdersInput{})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(page.Orders) != 1 {
		t.Fatalf("Expected 1 order, got %d", len(page.Orders))
	}
	listed := page.Orders[0].Items

	if len(cart.Items) != len(want) || len(order.Items) != len(want) || len(listed) != len(want) {
		t.Fatalf("Expected %d items everywhere, got cart %d, placed %d, listed %d",
			len(want), len(cart.Items), len(order.Items), len(listed))
	}
	for i, id := range want {
		if cart.Items[i].ProductID != id {
			t.Errorf("Cart item %d: expected %s, got %s", i, id, cart.Items[i].ProductID)
		}
		if order.Items[i].ProductID != id {
			t.Errorf("Placed item %d: expected %s, got %s", i, id, order.Items[i].ProductID)
		}
		if listed[i].ProductID != id {
			t.Errorf("Listed item %d: expected %s, got %s", i, id, listed[i].ProductID)
		}
	}
}

func TestAddProductDuringPlaceOrderLosesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "interleave@example.com")
	product := f.product(t, "Widget", "1.00", 40)

	if err := f.carts.AddProduct(ctx, user.ID, AddProductInput{ProductID: product.ID.String(), Quantity: 1}); err != nil {
		t.Fatalf("AddProduct: %v", err)
	}

	rounds := 4
	var wg sync.WaitGroup
	results := make(chan error, rounds*2)

	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			results <- f.carts.AddProduct(ctx, user.ID, AddProductInput{ProductID: product.ID.String(), Quantity: 3})
		}()
		go func() {
			defer wg.Done()
			_, err := f.orders.PlaceOrder(ctx, user.ID)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	for err := range results {
		switch {
		case err == nil:
		case errors.Is(err, database.ErrEmptyCart):
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	var ordered int
	if err := f.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(oi.quantity), 0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.user_id = $1`, user.ID).Scan(&ordered); err != nil {
		t.Fatalf("Sum ordered: %v", err)
	}

	cart, err := f.carts.GetCart(ctx, user.ID)
	if err != nil && !errors.Is(err, database.ErrEmptyCart) {
		t.Fatalf("GetCart: %v", err)
	}
	inCart := 0
	if cart != nil {
		for _, item := range cart.Items {
			inCart += item.Quantity
		}
	}

	taken := 40 - f.stock(t, product.ID)
	if taken != 1+3*rounds {
		t.Errorf("Expected %d units taken from stock, got %d", 1+3*rounds, taken)
	}
	if ordered+inCart != taken {
		t.Errorf("Expected ordered %d + in cart %d to equal %d taken from stock", ordered, inCart, taken)
	}
}
