package storage

import "github.com/ethereum/go-ethereum/common"

// Key layout:
//   book/<id>                 -> Book JSON
//   trader/<book>/<address>   -> Trader JSON

func bookKey(id string) []byte {
	return append([]byte("book/"), id...)
}

func traderKey(bookID string, owner common.Address) []byte {
	k := traderPrefix(bookID)
	return append(k, owner.Bytes()...)
}

func traderPrefix(bookID string) []byte {
	k := append([]byte("trader/"), bookID...)
	return append(k, '/')
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix, for Pebble iterator bounds.
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff
}
