package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/platform/apierr"
	"github.com/yungbote/bonfires-backend/internal/platform/ctxutil"
)

var errNoCaller = errors.New("missing authenticated user")

// callerID returns the authenticated user, or a 401 when the request is anonymous.
func callerID(ctx context.Context) (uuid.UUID, error) {
	id := ctxutil.UserID(ctx)
	if id == uuid.Nil {
		return uuid.Nil, apierr.Unauthorized(errNoCaller)
	}
	return id, nil
}

func validationErr(op, msg string) error {
	return domainagg.NewError(domainagg.CodeValidation, op, msg, nil)
}

func forbiddenErr(op, msg string) error {
	return domainagg.NewError(domainagg.CodeForbidden, op, msg, nil)
}

func notFoundErr(op, msg string) error {
	return domainagg.NewError(domainagg.CodeNotFound, op, msg, nil)
}

func conflictErr(op, msg string) error {
	return domainagg.NewError(domainagg.CodeConflict, op, msg, nil)
}

// lookupErr turns a missing row into NotFound and anything else into Internal.
func lookupErr(op, what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr(op, fmt.Sprintf("%s not found", what))
	}
	return domainagg.Wrap(domainagg.CodeInternal, op, err)
}
