package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/safar/storefront-api/internal/models"
	"github.com/safar/storefront-api/internal/service"
)

type listOrdersResponse struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.orders.PlaceOrder(r.Context(), claimsFrom(r.Context()).ID)
	if err != nil {
		s.respondError(w, r, "place order", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{"order": order})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	in := service.ListOrdersInput{Cursor: query.Get("cursor")}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			s.respondError(w, r, "list orders", fmt.Errorf("%w: limit must be a positive integer", service.ErrInvalidInput))
			return
		}
		in.Limit = limit
	}

	page, err := s.orders.ListOrders(r.Context(), claimsFrom(r.Context()).ID, in)
	if err != nil {
		s.respondError(w, r, "list orders", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, listOrdersResponse{Orders: page.Orders, NextCursor: page.NextCursor})
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var in service.SetStatusInput
	if err := decodeBody(w, r, &in); err != nil {
		s.respondError(w, r, "set order status", err)
		return
	}

	order, err := s.orders.SetStatus(r.Context(), in)
	if err != nil {
		s.respondError(w, r, "set order status", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{"order": order})
}
