// sign-price generates (or loads) an oracle publisher key and emits a
// signed price payload ready to POST to /api/v1/match. Devnet tooling.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tierdex/tierdex/pkg/crypto"
	"github.com/tierdex/tierdex/pkg/engine/oracle"
)

func main() {
	var (
		keyHex = flag.String("key", os.Getenv("PUBLISHER_KEY"), "publisher private key hex (generates one if empty)")
		symbol = flag.String("symbol", "BTC/USD", "feed symbol")
		price  = flag.Uint64("price", 65_000_000_000_000, "quantized price (scale 9)")
	)
	flag.Parse()

	// Step 1: Generate or load key
	var signer *crypto.Signer
	var err error
	if *keyHex == "" {
		fmt.Println("Generating new publisher keypair...")
		signer, err = crypto.GenerateKey()
	} else {
		signer, err = crypto.FromPrivateKeyHex(*keyHex)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Publisher Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	// Step 2: Build the payload
	data := &oracle.Data{
		Symbol: *symbol,
		FeedID: common.BytesToHash(crypto.Keccak256([]byte(*symbol))),
		Value: oracle.TemporalNumericValue{
			TimestampNs:    time.Now().UnixNano(),
			QuantizedValue: *price,
		},
	}

	fmt.Println("Price Payload:")
	fmt.Printf("  Symbol: %s\n", data.Symbol)
	fmt.Printf("  FeedID: %s\n", data.FeedID.Hex())
	fmt.Printf("  Value: %d (scale %d)\n", data.Value.QuantizedValue, oracle.QuantizedScale)
	fmt.Printf("  Timestamp: %d ns\n\n", data.Value.TimestampNs)

	// Step 3: Sign
	if err := oracle.Sign(signer, data); err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Signature: r=0x%x s=0x%x v=%d\n\n", data.R, data.S, data.V)

	// Step 4: Verify round-trip
	fmt.Println("Verifying signature...")
	sig := crypto.RSVToSignature(
		new(big.Int).SetBytes(data.R[:]),
		new(big.Int).SetBytes(data.S[:]),
		data.V)
	recovered, err := crypto.RecoverAddress(oracle.SigningDigest(data), sig)
	if err != nil {
		fmt.Printf("Error verifying: %v\n", err)
		os.Exit(1)
	}
	if recovered != signer.Address() {
		fmt.Println("✗ Signature INVALID")
		os.Exit(1)
	}
	fmt.Println("✓ Signature VALID")
	fmt.Printf("  Publisher: %s\n\n", recovered.Hex())

	// Step 5: Serialize to JSON
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Signed Oracle Payload (JSON):")
	fmt.Println(string(payload))
	fmt.Println()
	fmt.Println("To match orders with this price:")
	fmt.Println("  POST http://localhost:8080/api/v1/match")
	fmt.Println("  Content-Type: application/json")
	fmt.Println(`  Body: {"book": ..., "maker": ..., "taker": ..., "makerIndex": 0, "takerIndex": 0, "oracle": <payload above>}`)
}
