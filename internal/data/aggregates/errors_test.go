package aggregates

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
)

func TestMapError_Validation(t *testing.T) {
	err := MapError("op", ValidationError("bad input"))
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_Conflict(t *testing.T) {
	err := MapError("op", ConflictError("pin limit reached"))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("expected conflict code, got %q (%v)", domainagg.CodeOf(err), err)
	}
	var aggErr *domainagg.Error
	if !errors.As(err, &aggErr) || aggErr.Message != "pin limit reached" {
		t.Fatalf("message should be preserved verbatim, got %+v", aggErr)
	}
}

func TestMapError_Forbidden(t *testing.T) {
	err := MapError("op", fmt.Errorf("wrapped: %w", ForbiddenError("not the owner")))
	if !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("expected forbidden code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_NotFound(t *testing.T) {
	for _, in := range []error{gorm.ErrRecordNotFound, NotFoundError("channel not found")} {
		err := MapError("op", in)
		if !domainagg.IsCode(err, domainagg.CodeNotFound) {
			t.Fatalf("expected not_found code, got %q (%v)", domainagg.CodeOf(err), err)
		}
	}
}

func TestMapError_SQLiteBusyIsRetryable(t *testing.T) {
	err := MapError("op", errors.New("database is locked (5) (SQLITE_BUSY)"))
	if !domainagg.IsCode(err, domainagg.CodeRetryable) {
		t.Fatalf("expected retryable code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_PassthroughAggregateError(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeRetryable, "op", "retry", errors.New("boom"))
	out := MapError("other", in)
	if out != in {
		t.Fatalf("expected passthrough aggregate error")
	}
}
