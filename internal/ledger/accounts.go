package ledger

import (
	"sort"

	"github.com/atmx/prediction-amm/internal/model"
	"github.com/atmx/prediction-amm/internal/result"
	"github.com/atmx/prediction-amm/internal/safemath"
)

// Accounts is the player account table. Accounts are never removed.
type Accounts struct {
	accounts map[model.PlayerID]model.Account
}

// NewAccounts creates an empty account table.
func NewAccounts() *Accounts {
	return &Accounts{accounts: make(map[model.PlayerID]model.Account)}
}

// Install opens an account for pid holding initialBalance.
func (a *Accounts) Install(pid model.PlayerID, initialBalance uint64) (model.Account, error) {
	if _, ok := a.accounts[pid]; ok {
		return model.Account{}, result.ErrPlayerAlreadyExists
	}
	acct := model.Account{Balance: initialBalance}
	a.accounts[pid] = acct
	return acct, nil
}

// Get returns the account of pid.
func (a *Accounts) Get(pid model.PlayerID) (model.Account, error) {
	acct, ok := a.accounts[pid]
	if !ok {
		return model.Account{}, result.ErrPlayerNotExist
	}
	return acct, nil
}

// Put stores acct for pid.
func (a *Accounts) Put(pid model.PlayerID, acct model.Account) {
	a.accounts[pid] = acct
}

// Len returns the number of accounts.
func (a *Accounts) Len() int {
	return len(a.accounts)
}

// Each calls fn for every account in player id order.
func (a *Accounts) Each(fn func(model.PlayerID, model.Account)) {
	ids := make([]model.PlayerID, 0, len(a.accounts))
	for id := range a.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i][0] != ids[j][0] {
			return ids[i][0] < ids[j][0]
		}
		return ids[i][1] < ids[j][1]
	})
	for _, id := range ids {
		fn(id, a.accounts[id])
	}
}

// Spend debits amount from the balance.
func Spend(acct model.Account, amount uint64) (model.Account, error) {
	if acct.Balance < amount {
		return acct, result.ErrInsufficientBalance
	}
	acct.Balance -= amount
	return acct, nil
}

// Credit adds amount to the balance.
func Credit(acct model.Account, amount uint64) (model.Account, error) {
	b, err := safemath.Add(acct.Balance, amount)
	if err != nil {
		return acct, err
	}
	acct.Balance = b
	return acct, nil
}

// CheckAndIncNonce accepts nonce only when it equals the stored nonce and
// advances the stored nonce by one.
func CheckAndIncNonce(acct model.Account, nonce uint64) (model.Account, error) {
	if nonce != acct.Nonce {
		return acct, result.ErrInvalidNonce
	}
	n, err := safemath.Add(acct.Nonce, 1)
	if err != nil {
		return acct, err
	}
	acct.Nonce = n
	return acct, nil
}
