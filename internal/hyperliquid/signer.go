package hyperliquid

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// EcdsaSigner derives the wallet address from a private key and signs
// outbound exchange actions. The EIP-712 typed-data hashing scheme
// Hyperliquid actually requires is out of scope (spec §1); this signs the
// canonical-JSON hash of the action instead, which is enough to exercise
// the Signer boundary end to end against a compatible test exchange.
type EcdsaSigner struct {
	key     *ecdsa.PrivateKey
	address string
}

// NewEcdsaSigner parses a hex-encoded private key (with or without a "0x"
// prefix) and derives its address.
func NewEcdsaSigner(hexKey string) (*EcdsaSigner, error) {
	key, err := crypto.HexToECDSA(trim0x(hexKey))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return &EcdsaSigner{key: key, address: addr.Hex()}, nil
}

// Address returns the signer's checksummed hex address.
func (es *EcdsaSigner) Address() string {
	return es.address
}

// Sign hashes the action with nonce and produces an r/s/v signature.
func (es *EcdsaSigner) Sign(action interface{}, nonce int64) (r, s, v string, err error) {
	payload, err := json.Marshal(struct {
		Action interface{} `json:"action"`
		Nonce  int64       `json:"nonce"`
	}{Action: action, Nonce: nonce})
	if err != nil {
		return "", "", "", fmt.Errorf("marshal action for signing: %w", err)
	}

	hash := crypto.Keccak256(payload)
	sig, err := crypto.Sign(hash, es.key)
	if err != nil {
		return "", "", "", fmt.Errorf("sign action: %w", err)
	}

	rBytes, sBytes, vByte := sig[:32], sig[32:64], sig[64]
	return fmt.Sprintf("0x%x", rBytes), fmt.Sprintf("0x%x", sBytes), fmt.Sprintf("%d", vByte+27), nil
}

func trim0x(hexKey string) string {
	if len(hexKey) > 1 && hexKey[0] == '0' && (hexKey[1] == 'x' || hexKey[1] == 'X') {
		return hexKey[2:]
	}
	return hexKey
}
