package authorization

import (
	"context"
	"errors"
)

// Service decides whether an actor may perform an action on an object within a shop.
type Service interface {
	Authorize(ctx context.Context, actor string, shopID string, object string, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidShop   = errors.New("invalid_shop")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
