// Package signer loads the deployment signing key from an encrypted keystore
// file. Key management itself stays external: deployline only ever holds a
// path reference in config and decrypts the file at the moment of use.
package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/term"

	"github.com/deployline/deployline/internal/config"
)

// Signer signs deployment transactions for one account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// KeystoreSigner implements Signer using a local encrypted keystore file
type KeystoreSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeystoreSigner decrypts a keystore file with the given password
func NewKeystoreSigner(path, password string) (*KeystoreSigner, error) {
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keystore file: %w", err)
	}

	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("decrypting keystore: %w", err)
	}

	return &KeystoreSigner{
		key:     key.PrivateKey,
		address: crypto.PubkeyToAddress(key.PrivateKey.PublicKey),
	}, nil
}

// Address returns the signing account's address
func (s *KeystoreSigner) Address() common.Address {
	return s.address
}

// SignTx signs a transaction for the given chain
func (s *KeystoreSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return signed, nil
}

// ResolvePassword finds the keystore password, in order: environment
// variable, password file, interactive prompt. The password value itself is
// never logged.
func ResolvePassword(cfg config.SignerConfig) (string, error) {
	if pw := os.Getenv("DEPLOYLINE_KEYSTORE_PASSWORD"); pw != "" {
		return pw, nil
	}

	if cfg.PasswordFile != "" {
		data, err := os.ReadFile(cfg.PasswordFile)
		if err != nil {
			return "", fmt.Errorf("reading password file: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	stdinFd := int(os.Stdin.Fd())
	if term.IsTerminal(stdinFd) {
		fmt.Fprint(os.Stderr, "Keystore password: ")
		bytePw, err := term.ReadPassword(stdinFd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(bytePw), nil
	}

	return "", fmt.Errorf("no keystore password available (set DEPLOYLINE_KEYSTORE_PASSWORD or a password file)")
}
