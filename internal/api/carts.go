package api

import (
	"net/http"

	"github.com/safar/storefront-api/internal/service"
)

func (s *Server) handleCreateCart(w http.ResponseWriter, r *http.Request) {
	cart, err := s.carts.GetOrCreateCart(r.Context(), claimsFrom(r.Context()).ID)
	if err != nil {
		s.respondError(w, r, "create cart", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"message": "cart created",
		"cart":    cart,
	})
}

func (s *Server) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var in service.AddProductInput
	if err := decodeBody(w, r, &in); err != nil {
		s.respondError(w, r, "add product", err)
		return
	}

	if err := s.carts.AddProduct(r.Context(), claimsFrom(r.Context()).ID, in); err != nil {
		s.respondError(w, r, "add product", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, messageResponse{Message: "product added to cart successfully"})
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := s.carts.GetCart(r.Context(), claimsFrom(r.Context()).ID)
	if err != nil {
		s.respondError(w, r, "get cart", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{"cart": cart})
}
