package auth

import (
	"context"
	"errors"

	"github.com/bbh1312/sleep-cash-backend/internal"
)

var ErrInvalidToken = errors.New("invalid token")

type Provider interface {
	ValidateTokenLocal(token string) (*internal.User, error)
	ValidateTokenRemote(ctx context.Context, token string) (*internal.User, error)
}
