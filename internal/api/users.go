package api

import (
	"net/http"

	"github.com/safar/storefront-api/internal/models"
	"github.com/safar/storefront-api/internal/service"
)

type signupResponse struct {
	User    *models.User `json:"user"`
	Message string       `json:"message"`
	Token   string       `json:"token"`
}

type tokenResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if err := decodeBody(w, r, &in); err != nil {
		s.respondError(w, r, "signup", err)
		return
	}

	result, err := s.users.Signup(r.Context(), in)
	if err != nil {
		s.respondError(w, r, "signup", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, signupResponse{
		User:    result.User,
		Message: "user created successfully",
		Token:   result.Token,
	})
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	var in service.SigninInput
	if err := decodeBody(w, r, &in); err != nil {
		s.respondError(w, r, "signin", err)
		return
	}

	token, err := s.users.Signin(r.Context(), in)
	if err != nil {
		s.respondError(w, r, "signin", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, tokenResponse{Message: "signed in successfully", Token: token})
}
