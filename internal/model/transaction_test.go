package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransactionHash(t *testing.T) {
	base := Transaction{
		ID:        "txn-1",
		Payee:     "WOOLWORTHS METRO 123",
		Amount:    -45.50,
		AccountID: "acc-1",
		Date:      time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
	}

	t.Run("stable for identical inputs", func(t *testing.T) {
		same := base
		assert.Equal(t, base.Hash(), same.Hash())
	})

	t.Run("intraday time does not change the hash", func(t *testing.T) {
		later := base
		later.Date = base.Date.Add(6 * time.Hour)
		assert.Equal(t, base.Hash(), later.Hash())
	})

	t.Run("differs by payee, amount, account and day", func(t *testing.T) {
		hashes := map[string]bool{base.Hash(): true}

		variants := []func(*Transaction){
			func(txn *Transaction) { txn.Payee = "COLES" },
			func(txn *Transaction) { txn.Amount = -45.51 },
			func(txn *Transaction) { txn.AccountID = "acc-2" },
			func(txn *Transaction) { txn.Date = txn.Date.AddDate(0, 0, 1) },
		}
		for _, mutate := range variants {
			v := base
			mutate(&v)
			hashes[v.Hash()] = true
		}

		assert.Len(t, hashes, len(variants)+1)
	})
}

func TestCategoryFullTitle(t *testing.T) {
	assert.Equal(t, "Groceries", Category{Title: "Groceries"}.FullTitle())
	assert.Equal(t, "Food > Groceries", Category{Title: "Groceries", Parent: "Food"}.FullTitle())
}
