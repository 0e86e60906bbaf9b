package sim

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderTerminal     = errors.New("order is in a terminal state")
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInternal marks a fault detected before commit; engine state is unchanged.
	ErrInternal = errors.New("internal engine fault")
	// ErrJournal is returned alongside a valid fill when the trade sink fails.
	ErrJournal = errors.New("journal write failed")
)
