package models

import "fmt"

// AlreadyExistsError is returned when creating a balance whose id is taken.
type AlreadyExistsError struct {
	ID BalanceID
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("balance with id %d already exists", e.ID)
}

// NotFoundError is returned when an operation names an unknown balance id.
type NotFoundError struct {
	ID BalanceID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("balance with id %d not found", e.ID)
}

// InsufficientFundsError is returned when a withdrawal or a transfer debit
// leg would take a balance below zero.
type InsufficientFundsError struct {
	Balance   Amount
	Requested Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for withdrawal. Balance: %s, Requested: %s", e.Balance, e.Requested)
}

// OverflowError is returned when a deposit or a transfer credit leg would
// push an amount past the 128-bit range.
type OverflowError struct {
	ID BalanceID
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("amount overflow on balance %d", e.ID)
}

// UnknownError wraps a recovered panic from a command handler.
type UnknownError struct {
	Message string
}

func (e *UnknownError) Error() string {
	return "unknown error: " + e.Message
}

// StorageError is returned when the underlying store failed during a
// command; the in-memory mutation has been reverted by the time the caller
// sees it.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return "storage error: " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
