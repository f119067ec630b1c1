// Package errors provides custom error types for order-related operations.
package errors

import "errors"

var ErrOrderNotFound = errors.New("order not found")
var ErrItemNotFound = errors.New("order item not found")

var ErrInvalidQuantity = errors.New("quantity must not be negative")
var ErrInvalidStatus = errors.New("unknown order status")
var ErrTransitionNotAllowed = errors.New("status transition not allowed")

var ErrOwnerConflict = errors.New("owner already has an active order")

var ErrCreateOrder = errors.New("failed to create order")
var ErrUpdateOrder = errors.New("failed to update order")
var ErrDeleteOrder = errors.New("failed to delete order")
var ErrFailedToFindOrder = errors.New("failed to find order")

var ErrTransactionBegin = errors.New("failed to begin transaction")
var ErrTransactionCommit = errors.New("failed to commit transaction")
var ErrTransactionRollback = errors.New("failed to rollback transaction")
