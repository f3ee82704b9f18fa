package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/safar/storefront-api/internal/auth"
	"github.com/safar/storefront-api/internal/models"
	"github.com/safar/storefront-api/internal/ratelimit"
	"github.com/safar/storefront-api/internal/service"
	"github.com/safar/storefront-api/internal/store"
)

type UserService interface {
	Signup(ctx context.Context, in service.SignupInput) (*service.SignupResult, error)
	Signin(ctx context.Context, in service.SigninInput) (string, error)
}

type CatalogService interface {
	CreateProduct(ctx context.Context, in service.CreateProductInput) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

type CartService interface {
	GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddProduct(ctx context.Context, userID uuid.UUID, in service.AddProductInput) error
	GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
}

type OrderService interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID, in service.ListOrdersInput) (*store.OrderPage, error)
	SetStatus(ctx context.Context, in service.SetStatusInput) (*models.Order, error)
}

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Users   UserService
	Catalog CatalogService
	Carts   CartService
	Orders  OrderService
	Tokens  TokenVerifier
	DB      Pinger
	// Limiter guards signup and signin. Nil disables rate limiting.
	Limiter ratelimit.Limiter
	Log     *slog.Logger
}

type Server struct {
	users   UserService
	catalog CatalogService
	carts   CartService
	orders  OrderService
	tokens  TokenVerifier
	db      Pinger
	log     *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	s := &Server{
		users:   d.Users,
		catalog: d.Catalog,
		carts:   d.Carts,
		orders:  d.Orders,
		tokens:  d.Tokens,
		db:      d.DB,
		log:     d.Log,
	}

	r := mux.NewRouter()
	r.Use(requestID, s.logRequests)
	r.NotFoundHandler = requestID(http.HandlerFunc(s.notFound))
	r.MethodNotAllowedHandler = requestID(http.HandlerFunc(s.methodNotAllowed))

	r.HandleFunc("/", s.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()

	users := v1.PathPrefix("/user").Subrouter()
	if d.Limiter != nil {
		users.Use(ratelimit.Middleware(d.Limiter, d.Log))
	}
	users.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost)
	users.HandleFunc("/signin", s.handleSignin).Methods(http.MethodPost)

	protected := v1.NewRoute().Subrouter()
	protected.Use(s.authGuard)

	// Group roots answer with and without the trailing slash.
	handleRoot := func(path string, h http.HandlerFunc, method string) {
		protected.HandleFunc(path, h).Methods(method)
		protected.HandleFunc(path+"/", h).Methods(method)
	}

	handleRoot("/product", s.handleCreateProduct, http.MethodPost)
	protected.HandleFunc("/product/bulk", s.handleListProducts).Methods(http.MethodGet)
	protected.HandleFunc("/product/{id}", s.handleGetProduct).Methods(http.MethodGet)

	protected.HandleFunc("/cart/create", s.handleCreateCart).Methods(http.MethodPost)
	protected.HandleFunc("/cart/add-product", s.handleAddProduct).Methods(http.MethodPost)
	handleRoot("/cart", s.handleGetCart, http.MethodGet)

	handleRoot("/order", s.handlePlaceOrder, http.MethodPost)
	handleRoot("/order", s.handleListOrders, http.MethodGet)
	protected.HandleFunc("/order/status", s.handleSetStatus).Methods(http.MethodPost)

	return r
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{
		"message": "storefront API",
		"version": "v1",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.log.WarnContext(r.Context(), "database not ready", slog.Any("err", err))
		s.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusNotFound, messageResponse{Message: "route not found"})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusMethodNotAllowed, messageResponse{Message: "method not allowed"})
}

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return fmt.Errorf("%w: request body is not valid JSON for this route: %v", service.ErrInvalidInput, err)
	}
	return nil
}
