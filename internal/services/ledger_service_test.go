package services

import (
	"testing"

	"github.com/paystream/ledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_Create(t *testing.T) {
	ledger := NewLedgerService()

	t.Run("creates empty balance", func(t *testing.T) {
		require.NoError(t, ledger.Create(1))
		balance, err := ledger.Get(1)
		assert.NoError(t, err)
		assert.True(t, balance.Amount.IsZero())
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		err := ledger.Create(1)
		var alreadyExists *models.AlreadyExistsError
		require.ErrorAs(t, err, &alreadyExists)
		assert.Equal(t, uint64(1), alreadyExists.ID)
	})
}

func TestLedgerService_Deposit(t *testing.T) {
	ledger := NewLedgerService()
	require.NoError(t, ledger.Create(1))

	t.Run("unknown id rejected", func(t *testing.T) {
		err := ledger.Deposit(99, models.NewAmount(10))
		var notFound *models.NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, uint64(99), notFound.ID)
	})

	t.Run("credits the balance", func(t *testing.T) {
		require.NoError(t, ledger.Deposit(1, models.NewAmount(100)))
		balance, _ := ledger.Get(1)
		assert.Zero(t, balance.Amount.Cmp(models.NewAmount(100)))
	})

	t.Run("zero amount accepted", func(t *testing.T) {
		require.NoError(t, ledger.Deposit(1, models.NewAmount(0)))
		balance, _ := ledger.Get(1)
		assert.Zero(t, balance.Amount.Cmp(models.NewAmount(100)))
	})

	t.Run("overflow rejected and balance unchanged", func(t *testing.T) {
		max := maxTestAmount(t)
		require.NoError(t, ledger.Create(2))
		require.NoError(t, ledger.Deposit(2, max))

		err := ledger.Deposit(2, models.NewAmount(1))
		var overflow *models.OverflowError
		require.ErrorAs(t, err, &overflow)
		assert.Equal(t, uint64(2), overflow.ID)

		balance, _ := ledger.Get(2)
		assert.Zero(t, balance.Amount.Cmp(max))
	})
}

func TestLedgerService_Withdraw(t *testing.T) {
	ledger := NewLedgerService()
	require.NoError(t, ledger.Create(1))
	require.NoError(t, ledger.Deposit(1, models.NewAmount(100)))

	t.Run("debits the balance", func(t *testing.T) {
		require.NoError(t, ledger.Withdraw(1, models.NewAmount(40)))
		balance, _ := ledger.Get(1)
		assert.Zero(t, balance.Amount.Cmp(models.NewAmount(60)))
	})

	t.Run("insufficient funds carries details", func(t *testing.T) {
		err := ledger.Withdraw(1, models.NewAmount(61))
		var insufficient *models.InsufficientFundsError
		require.ErrorAs(t, err, &insufficient)
		assert.Zero(t, insufficient.Balance.Cmp(models.NewAmount(60)))
		assert.Zero(t, insufficient.Requested.Cmp(models.NewAmount(61)))

		balance, _ := ledger.Get(1)
		assert.Zero(t, balance.Amount.Cmp(models.NewAmount(60)))
	})

	t.Run("unknown id rejected", func(t *testing.T) {
		var notFound *models.NotFoundError
		assert.ErrorAs(t, ledger.Withdraw(5, models.NewAmount(1)), &notFound)
	})

	t.Run("deposit then withdraw is a no-op", func(t *testing.T) {
		before, _ := ledger.Get(1)
		require.NoError(t, ledger.Deposit(1, models.NewAmount(25)))
		require.NoError(t, ledger.Withdraw(1, models.NewAmount(25)))
		after, _ := ledger.Get(1)
		assert.Zero(t, after.Amount.Cmp(before.Amount))
	})
}

func TestLedgerService_Transfer(t *testing.T) {
	ledger := NewLedgerService()
	require.NoError(t, ledger.Create(1))
	require.NoError(t, ledger.Create(2))
	require.NoError(t, ledger.Deposit(1, models.NewAmount(50)))

	t.Run("missing source rejected before any mutation", func(t *testing.T) {
		var notFound *models.NotFoundError
		require.ErrorAs(t, ledger.Transfer(9, 2, models.NewAmount(1)), &notFound)
		assert.Equal(t, uint64(9), notFound.ID)
	})

	t.Run("missing destination rejected before debit", func(t *testing.T) {
		var notFound *models.NotFoundError
		require.ErrorAs(t, ledger.Transfer(1, 9, models.NewAmount(1)), &notFound)
		assert.Equal(t, uint64(9), notFound.ID)

		balance, _ := ledger.Get(1)
		assert.Zero(t, balance.Amount.Cmp(models.NewAmount(50)))
	})

	t.Run("moves amount between accounts", func(t *testing.T) {
		require.NoError(t, ledger.Transfer(1, 2, models.NewAmount(30)))
		from, _ := ledger.Get(1)
		to, _ := ledger.Get(2)
		assert.Zero(t, from.Amount.Cmp(models.NewAmount(20)))
		assert.Zero(t, to.Amount.Cmp(models.NewAmount(30)))
	})

	t.Run("total is invariant under transfer", func(t *testing.T) {
		totalBefore, ok := ledger.Sum()
		require.True(t, ok)

		require.NoError(t, ledger.Transfer(2, 1, models.NewAmount(10)))

		totalAfter, ok := ledger.Sum()
		require.True(t, ok)
		assert.Zero(t, totalAfter.Cmp(totalBefore))
	})

	t.Run("insufficient funds on debit leg", func(t *testing.T) {
		var insufficient *models.InsufficientFundsError
		assert.ErrorAs(t, ledger.Transfer(1, 2, models.NewAmount(1000)), &insufficient)
	})

	t.Run("same account nets to no change", func(t *testing.T) {
		before, _ := ledger.Get(1)
		require.NoError(t, ledger.Transfer(1, 1, models.NewAmount(5)))
		after, _ := ledger.Get(1)
		assert.Zero(t, after.Amount.Cmp(before.Amount))
	})

	t.Run("credit overflow rolls the debit back", func(t *testing.T) {
		require.NoError(t, ledger.Create(3))
		require.NoError(t, ledger.Deposit(3, maxTestAmount(t)))

		fromBefore, _ := ledger.Get(1)
		err := ledger.Transfer(1, 3, models.NewAmount(5))
		var overflow *models.OverflowError
		require.ErrorAs(t, err, &overflow)

		fromAfter, _ := ledger.Get(1)
		assert.Zero(t, fromAfter.Amount.Cmp(fromBefore.Amount))
		dest, _ := ledger.Get(3)
		assert.Zero(t, dest.Amount.Cmp(maxTestAmount(t)))
	})
}

func TestLedgerService_RestoreRemove(t *testing.T) {
	ledger := NewLedgerService()
	require.NoError(t, ledger.Create(1))
	require.NoError(t, ledger.Deposit(1, models.NewAmount(10)))

	prev, _ := ledger.Get(1)
	require.NoError(t, ledger.Deposit(1, models.NewAmount(90)))
	ledger.Restore(prev)
	balance, _ := ledger.Get(1)
	assert.Zero(t, balance.Amount.Cmp(models.NewAmount(10)))

	ledger.Remove(1)
	_, err := ledger.Get(1)
	var notFound *models.NotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, 0, ledger.Len())
}

func maxTestAmount(t *testing.T) models.Amount {
	t.Helper()
	b := make([]byte, 16)
	for i := range b {
		b[i] = 0xff
	}
	a, err := models.AmountFromBinary(b)
	require.NoError(t, err)
	return a
}
