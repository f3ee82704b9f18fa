package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/safar/storefront-api/internal/service"
)

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in service.CreateProductInput
	if err := decodeBody(w, r, &in); err != nil {
		s.respondError(w, r, "create product", err)
		return
	}

	product, err := s.catalog.CreateProduct(r.Context(), in)
	if err != nil {
		s.respondError(w, r, "create product", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"product": product,
		"message": "product added successfully",
	})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.ListProducts(r.Context())
	if err != nil {
		s.respondError(w, r, "list products", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.catalog.GetProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, "get product", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{"product": product})
}
