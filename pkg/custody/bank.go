// Package custody provides the token-transfer collaborator: an in-memory
// bank of external token accounts and book vaults. Production deployments
// swap this for a bridge to the real custodial system; the engine only
// depends on the MoveTokens contract.
package custody

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type Bank struct {
	mu       sync.RWMutex
	balances map[string]map[common.Address]int64 // asset -> holder -> amount
}

func NewBank() *Bank {
	return &Bank{balances: make(map[string]map[common.Address]int64)}
}

// Mint credits tokens out of thin air. Devnet faucet and test setup only.
func (bk *Bank) Mint(asset string, to common.Address, amount int64) {
	if amount <= 0 {
		return
	}
	bk.mu.Lock()
	defer bk.mu.Unlock()
	bk.holdersLocked(asset)[to] += amount
}

// Balance returns a holder's token balance for asset.
func (bk *Bank) Balance(asset string, holder common.Address) int64 {
	bk.mu.RLock()
	defer bk.mu.RUnlock()
	return bk.balances[asset][holder]
}

// MoveTokens transfers amount of asset between accounts. Fails without
// side effects when the source balance is short.
func (bk *Bank) MoveTokens(asset string, from, to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive: %d", amount)
	}

	bk.mu.Lock()
	defer bk.mu.Unlock()

	holders := bk.holdersLocked(asset)
	if holders[from] < amount {
		return fmt.Errorf("account %s holds %d %s, need %d", from.Hex(), holders[from], asset, amount)
	}
	holders[from] -= amount
	holders[to] += amount
	return nil
}

func (bk *Bank) holdersLocked(asset string) map[common.Address]int64 {
	holders, ok := bk.balances[asset]
	if !ok {
		holders = make(map[common.Address]int64)
		bk.balances[asset] = holders
	}
	return holders
}
