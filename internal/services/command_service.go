package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/paystream/ledger/internal/database"
	"github.com/paystream/ledger/internal/models"
)

const balanceCacheTTL = 5 * time.Minute

// BalanceCommandService serializes all ledger commands through a single
// bounded mailbox, applies them to the in-memory ledger, and on success
// commits the mutated balance record(s) together with the corresponding
// event in one atomic batch. Commands are totally ordered by mailbox
// arrival; event ids are assigned in exactly that order.
type BalanceCommandService struct {
	ledger  *LedgerService
	store   *database.Store
	cache   *redis.Client
	mailbox chan command
}

type command struct {
	run   func() (any, error)
	reply chan result
}

type result struct {
	value any
	err   error
}

// NewBalanceCommandService recovers the ledger from the store and starts
// the single-writer command loop. cache may be nil.
func NewBalanceCommandService(store *database.Store, cache *redis.Client, mailboxCapacity int) (*BalanceCommandService, error) {
	ledger := NewLedgerService()
	if err := ledger.LoadFromStore(store); err != nil {
		return nil, fmt.Errorf("recovering ledger: %w", err)
	}
	s := &BalanceCommandService{
		ledger:  ledger,
		store:   store,
		cache:   cache,
		mailbox: make(chan command, mailboxCapacity),
	}
	go s.loop()
	return s, nil
}

func (s *BalanceCommandService) loop() {
	for cmd := range s.mailbox {
		cmd.reply <- s.execute(cmd.run)
	}
}

// execute runs one handler, converting a panic into an UnknownError so a
// misbehaving command cannot kill the writer loop.
func (s *BalanceCommandService) execute(run func() (any, error)) (res result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[COMMAND] recovered panic in handler: %v", r)
			res = result{err: &models.UnknownError{Message: fmt.Sprint(r)}}
		}
	}()
	value, err := run()
	return result{value: value, err: err}
}

func (s *BalanceCommandService) do(run func() (any, error)) (any, error) {
	cmd := command{run: run, reply: make(chan result, 1)}
	s.mailbox <- cmd
	r := <-cmd.reply
	return r.value, r.err
}

// Stop drains no further commands. In-flight commands complete.
func (s *BalanceCommandService) Stop() {
	close(s.mailbox)
}

// CreateBalance creates an empty balance and records a BalanceCreated event.
func (s *BalanceCommandService) CreateBalance(id models.BalanceID) (models.BalanceID, error) {
	_, err := s.do(func() (any, error) {
		if err := s.ledger.Create(id); err != nil {
			return nil, err
		}
		balance, _ := s.ledger.Get(id)
		txn := s.store.Begin()
		txn.StageBalance(balance)
		if _, err := txn.StageEvent(models.EventBalanceCreated, models.CreatedEvent{ID: id}.EncodeBinary()); err != nil {
			txn.Rollback()
			s.ledger.Remove(id)
			return nil, &models.StorageError{Err: err}
		}
		if err := txn.Commit(); err != nil {
			s.ledger.Remove(id)
			return nil, &models.StorageError{Err: err}
		}
		s.cacheBalance(balance)
		return nil, nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Deposit credits a balance and records a BalanceDeposited event.
func (s *BalanceCommandService) Deposit(id models.BalanceID, amount models.Amount) error {
	_, err := s.do(func() (any, error) {
		prev, err := s.ledger.Get(id)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.Deposit(id, amount); err != nil {
			return nil, err
		}
		balance, _ := s.ledger.Get(id)
		payload := models.DepositedEvent{ID: id, Amount: amount}.EncodeBinary()
		if err := s.commitOne(balance, models.EventBalanceDeposited, payload); err != nil {
			s.ledger.Restore(prev)
			return nil, err
		}
		return nil, nil
	})
	return err
}

// Withdraw debits a balance and records a BalanceWithdrawn event.
func (s *BalanceCommandService) Withdraw(id models.BalanceID, amount models.Amount) error {
	_, err := s.do(func() (any, error) {
		prev, err := s.ledger.Get(id)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.Withdraw(id, amount); err != nil {
			return nil, err
		}
		balance, _ := s.ledger.Get(id)
		payload := models.WithdrawnEvent{ID: id, Amount: amount}.EncodeBinary()
		if err := s.commitOne(balance, models.EventBalanceWithdrawn, payload); err != nil {
			s.ledger.Restore(prev)
			return nil, err
		}
		return nil, nil
	})
	return err
}

// Transfer moves amount between two balances and records a single
// BalanceTransferred event covering both legs.
func (s *BalanceCommandService) Transfer(fromID, toID models.BalanceID, amount models.Amount) error {
	_, err := s.do(func() (any, error) {
		prevFrom, err := s.ledger.Get(fromID)
		if err != nil {
			return nil, err
		}
		prevTo, err := s.ledger.Get(toID)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.Transfer(fromID, toID, amount); err != nil {
			return nil, err
		}
		from, _ := s.ledger.Get(fromID)
		to, _ := s.ledger.Get(toID)

		txn := s.store.Begin()
		txn.StageBalance(from)
		txn.StageBalance(to)
		payload := models.TransferredEvent{FromID: fromID, ToID: toID, Amount: amount}.EncodeBinary()
		if _, err := txn.StageEvent(models.EventBalanceTransferred, payload); err != nil {
			txn.Rollback()
			s.ledger.Restore(prevFrom)
			s.ledger.Restore(prevTo)
			return nil, &models.StorageError{Err: err}
		}
		if err := txn.Commit(); err != nil {
			s.ledger.Restore(prevFrom)
			s.ledger.Restore(prevTo)
			return nil, &models.StorageError{Err: err}
		}
		s.cacheBalance(from)
		s.cacheBalance(to)
		return nil, nil
	})
	return err
}

// GetBalance reads one balance through the mailbox, so the result reflects
// every command accepted before it. The cache refresh happens inside the
// mailbox too, keeping it ordered with the write-throughs of later commands.
func (s *BalanceCommandService) GetBalance(id models.BalanceID) (models.Balance, error) {
	v, err := s.do(func() (any, error) {
		balance, err := s.ledger.Get(id)
		if err != nil {
			return nil, err
		}
		s.cacheBalance(balance)
		return balance, nil
	})
	if err != nil {
		return models.Balance{}, err
	}
	return v.(models.Balance), nil
}

// commitOne stages a single mutated balance plus its event and commits.
func (s *BalanceCommandService) commitOne(balance models.Balance, eventType models.EventType, payload []byte) error {
	txn := s.store.Begin()
	txn.StageBalance(balance)
	if _, err := txn.StageEvent(eventType, payload); err != nil {
		txn.Rollback()
		return &models.StorageError{Err: err}
	}
	if err := txn.Commit(); err != nil {
		return &models.StorageError{Err: err}
	}
	s.cacheBalance(balance)
	return nil
}

func balanceCacheKey(id models.BalanceID) string {
	return fmt.Sprintf("balance:%d", id)
}

// cacheBalance writes through to the read cache, best effort.
func (s *BalanceCommandService) cacheBalance(b models.Balance) {
	if s.cache == nil {
		return
	}
	ctx := context.Background()
	if err := s.cache.Set(ctx, balanceCacheKey(b.ID), b.Amount.String(), balanceCacheTTL).Err(); err != nil {
		log.Printf("[CACHE] failed to cache balance %d: %v", b.ID, err)
	}
}

// LookupCached returns a cached balance if the cache holds one. Cached
// values always reflect some committed state.
func (s *BalanceCommandService) LookupCached(id models.BalanceID) (models.Balance, bool) {
	if s.cache == nil {
		return models.Balance{}, false
	}
	ctx := context.Background()
	val, err := s.cache.Get(ctx, balanceCacheKey(id)).Result()
	if err != nil {
		return models.Balance{}, false
	}
	amount, err := models.AmountFromString(val)
	if err != nil {
		log.Printf("[CACHE] corrupt cached balance %d: %v", id, err)
		return models.Balance{}, false
	}
	return models.Balance{ID: id, Amount: amount}, true
}
