package services

import (
	"log"

	"github.com/paystream/ledger/internal/database"
	"github.com/paystream/ledger/internal/models"
)

// LedgerService is the in-memory ledger state machine: a mapping from
// balance id to balance. All operations are pure in-memory mutations; no
// method performs I/O. It is not safe for concurrent use; the command
// service funnels every mutation through its single-writer mailbox.
type LedgerService struct {
	balances map[models.BalanceID]models.Balance
}

func NewLedgerService() *LedgerService {
	return &LedgerService{
		balances: make(map[models.BalanceID]models.Balance),
	}
}

// LoadFromStore rebuilds the ledger by enumerating every persisted balance
// record. After recovery the ledger holds an id iff a durable record with
// that id exists.
func (s *LedgerService) LoadFromStore(store *database.Store) error {
	count := 0
	err := store.IterateCF(database.CFBalances, func(_, val []byte) error {
		balance, err := models.DecodeBalance(val)
		if err != nil {
			return err
		}
		s.balances[balance.ID] = balance
		count++
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("[LEDGER] loaded %d balances", count)
	return nil
}

// Create inserts a new balance with amount 0.
func (s *LedgerService) Create(id models.BalanceID) error {
	if _, ok := s.balances[id]; ok {
		return &models.AlreadyExistsError{ID: id}
	}
	s.balances[id] = models.Balance{ID: id, Amount: models.NewAmount(0)}
	return nil
}

// Deposit credits the balance. A zero amount is accepted and leaves the
// balance unchanged.
func (s *LedgerService) Deposit(id models.BalanceID, amount models.Amount) error {
	balance, ok := s.balances[id]
	if !ok {
		return &models.NotFoundError{ID: id}
	}
	sum, ok := balance.Amount.Add(amount)
	if !ok {
		return &models.OverflowError{ID: id}
	}
	balance.Amount = sum
	s.balances[id] = balance
	return nil
}

// Withdraw debits the balance, failing if it would go below zero.
func (s *LedgerService) Withdraw(id models.BalanceID, amount models.Amount) error {
	balance, ok := s.balances[id]
	if !ok {
		return &models.NotFoundError{ID: id}
	}
	if balance.Amount.Cmp(amount) < 0 {
		return &models.InsufficientFundsError{Balance: balance.Amount, Requested: amount}
	}
	balance.Amount = balance.Amount.Sub(amount)
	s.balances[id] = balance
	return nil
}

// Transfer debits from and credits to atomically: both accounts must exist
// up front, and if the credit leg overflows the debit is rolled back.
// Transferring to the same account is accepted and nets to no change.
func (s *LedgerService) Transfer(fromID, toID models.BalanceID, amount models.Amount) error {
	if _, ok := s.balances[fromID]; !ok {
		return &models.NotFoundError{ID: fromID}
	}
	if _, ok := s.balances[toID]; !ok {
		return &models.NotFoundError{ID: toID}
	}
	if err := s.Withdraw(fromID, amount); err != nil {
		return err
	}
	if err := s.Deposit(toID, amount); err != nil {
		// Credit leg overflowed: restore the debited amount.
		refund, _ := s.balances[fromID].Amount.Add(amount)
		s.balances[fromID] = models.Balance{ID: fromID, Amount: refund}
		return err
	}
	return nil
}

// Get looks up one balance.
func (s *LedgerService) Get(id models.BalanceID) (models.Balance, error) {
	balance, ok := s.balances[id]
	if !ok {
		return models.Balance{}, &models.NotFoundError{ID: id}
	}
	return balance, nil
}

// Restore puts a previously captured balance record back, undoing a
// mutation whose durable commit failed.
func (s *LedgerService) Restore(b models.Balance) {
	s.balances[b.ID] = b
}

// Remove deletes a balance, undoing a Create whose durable commit failed.
func (s *LedgerService) Remove(id models.BalanceID) {
	delete(s.balances, id)
}

// Len reports the number of balances held.
func (s *LedgerService) Len() int {
	return len(s.balances)
}

// Sum adds up every balance. ok is false if the total does not fit in an
// Amount; transfers never change the sum either way.
func (s *LedgerService) Sum() (total models.Amount, ok bool) {
	ok = true
	for _, b := range s.balances {
		next, fits := total.Add(b.Amount)
		if !fits {
			return total, false
		}
		total = next
	}
	return total, ok
}
