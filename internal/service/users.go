package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/storefront-api/internal/auth"
	"github.com/safar/storefront-api/internal/database"
	"github.com/safar/storefront-api/internal/models"
	"github.com/safar/storefront-api/internal/store"
)

// bcrypt ignores anything past 72 bytes.
const maxPasswordBytes = 72

type SignupInput struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8"`
}

type SigninInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SignupResult struct {
	User  *models.User
	Token string
}

type Users struct {
	db     *sql.DB
	tokens *auth.Issuer
}

func NewUsers(db *sql.DB, tokens *auth.Issuer) *Users {
	return &Users{db: db, tokens: tokens}
}

func (s *Users) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)

	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, invalid("password must be at most %d bytes", maxPasswordBytes)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user, err := store.CreateUser(ctx, s.db, in.Email, in.Name, hash)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	return &SignupResult{User: user, Token: token}, nil
}

// Signin does not reveal whether the email or the password was wrong.
func (s *Users) Signin(ctx context.Context, in SigninInput) (string, error) {
	in.Email = strings.TrimSpace(in.Email)

	if err := validateStruct(in); err != nil {
		return "", err
	}

	user, err := store.GetUserByEmail(ctx, s.db, in.Email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			auth.BurnCompare(in.Password)
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := auth.ComparePassword(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("signin: %w", err)
	}

	return s.tokens.Issue(user)
}
