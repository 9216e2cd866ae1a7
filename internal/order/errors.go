package order

import (
	"fmt"

	"github.com/MikeMC777/coopmarket/internal/apperr"
)

var (
	ErrNotFound        = apperr.NotFound("order not found")
	ErrEmptyItems      = apperr.Invalid("order needs at least one item")
	ErrNumberTaken     = apperr.Conflict("order number already taken, retry the request")
	ErrForbidden       = apperr.Forbidden("not allowed to access this order")
	ErrCourierNotFound = apperr.Invalid("courier not found or inactive")
	ErrInvalidPayment  = apperr.Invalid("payment_status must be unpaid, paid or refunded")
	ErrNotCancellable  = apperr.Conflict("only pending orders can be cancelled by the customer")
	ErrInvalidStatus   = apperr.Invalid("unknown order status")
	ErrSharedOrder     = apperr.Forbidden("order has items from other cooperatives; an administrator must change its status")
)

// InvalidQuantityError reports a line with quantity below one.
type InvalidQuantityError struct {
	AttributeID string
	Quantity    int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1 for attribute %s (got %d)", e.AttributeID, e.Quantity)
}

func (e *InvalidQuantityError) Kind() apperr.Kind { return apperr.KindInvalid }

// UnknownVariantError reports a line referencing a missing or inactive
// variant.
type UnknownVariantError struct {
	AttributeID string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("attribute %s not found", e.AttributeID)
}

func (e *UnknownVariantError) Kind() apperr.Kind { return apperr.KindInvalid }

// InsufficientStockError names the variant that cannot cover the request.
type InsufficientStockError struct {
	AttributeID string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for attribute %s: requested %d, available %d",
		e.AttributeID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Kind() apperr.Kind { return apperr.KindInvalid }

// TransitionError reports a status change the lifecycle does not allow.
type TransitionError struct {
	From, To Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

func (e *TransitionError) Kind() apperr.Kind { return apperr.KindConflict }
