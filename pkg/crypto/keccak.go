package crypto

import (
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Keccak256 hashes data with legacy Keccak-256 (the Ethereum variant).
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// DeriveVaultAddress derives the deterministic custodial vault address for
// a (book, asset) pair. There is no key behind it: the vault is controlled
// by the engine, the address only names the pooled holdings in the bank.
func DeriveVaultAddress(bookID, asset string) common.Address {
	sum := Keccak256([]byte("tierdex/vault"), []byte(bookID), []byte(asset))
	return common.BytesToAddress(sum[12:])
}
