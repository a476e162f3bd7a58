// Package eth holds the Ethereum signing helpers used to prove wallet ownership.
package eth

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/walletlink/core"
)

// Hexlify returns the 0x-prefixed hex encoding of the UTF-8 bytes of s
func Hexlify(s string) string {
	return hexutil.Encode([]byte(s))
}

// RecoverPersonal recovers the address that produced an EIP-191 personal_sign
// signature over msg
func RecoverPersonal(msg []byte, signature string) (common.Address, error) {
	if !strings.HasPrefix(signature, "0x") && !strings.HasPrefix(signature, "0X") {
		signature = "0x" + signature
	}
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", core.ErrInvalidSignature)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes: %w", crypto.SignatureLength, core.ErrInvalidSignature)
	}

	// Wallets return V as 27/28, SigToPub expects 0/1
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(msg), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", core.ErrInvalidSignature)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyPersonal reports whether signature over msg was produced by address.
// Addresses are compared case-insensitively.
func VerifyPersonal(msg []byte, signature, address string) (bool, error) {
	recovered, err := RecoverPersonal(msg, signature)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(recovered.Hex(), ParseAccount(address)), nil
}

// SignPersonal produces a personal_sign signature with V in 27/28 form, the
// way browser wallets return it
func SignPersonal(key *ecdsa.PrivateKey, msg []byte) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash(msg), key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// ParseAccount strips a CAIP-10 prefix ("eip155:1:0xabc") down to the address
func ParseAccount(account string) string {
	if i := strings.LastIndex(account, ":"); i >= 0 {
		return account[i+1:]
	}
	return account
}
