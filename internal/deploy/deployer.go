// Package deploy submits contract creation transactions and waits for one
// on-chain confirmation.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/deployline/deployline/internal/config"
	"github.com/deployline/deployline/internal/signer"
	"github.com/deployline/deployline/internal/storage"
)

// Fatal deployment errors. None of these are retried.
var (
	// ErrInsufficientFunds means the account balance cannot cover the
	// estimated gas cost. Raised before any transaction is submitted.
	ErrInsufficientFunds = errors.New("insufficient funds for deployment")
	// ErrNonceConflict means another transaction from the same signer raced
	// this one. Never auto-resolved; the operator must intervene.
	ErrNonceConflict = errors.New("nonce conflict: concurrent transaction from the same signer")
	// ErrChainMismatch means the RPC endpoint reports a different chain than
	// the configuration targets.
	ErrChainMismatch = errors.New("rpc endpoint chain ID does not match configured network")
	// ErrReverted means the deployment transaction was included but reverted.
	ErrReverted = errors.New("deployment transaction reverted")
	// ErrConfirmationTimeout means no confirmation was observed within the
	// bounded wait. The transaction may still confirm later.
	ErrConfirmationTimeout = errors.New("timed out waiting for deployment confirmation")
)

// Backend is the subset of an Ethereum RPC client the deployer needs.
// *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Request describes one contract deployment.
type Request struct {
	ContractName    string
	Bytecode        []byte
	ConstructorArgs []byte
	Value           *big.Int
	CompilerVersion string
}

// Options bounds the confirmation wait and retry behavior.
type Options struct {
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
	Retry               RetryConfig
}

// Deployer submits deployment transactions for one network and signer.
type Deployer struct {
	backend Backend
	signer  signer.Signer
	network config.Network
	logger  *slog.Logger
	opts    Options
}

// New creates a Deployer. Zero option fields get defaults.
func New(backend Backend, s signer.Signer, network config.Network, logger *slog.Logger, opts Options) *Deployer {
	if opts.ConfirmationTimeout == 0 {
		opts.ConfirmationTimeout = 3 * time.Minute
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 4 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryConfig
	}
	return &Deployer{
		backend: backend,
		signer:  s,
		network: network,
		logger:  logger,
		opts:    opts,
	}
}

// Deploy submits a contract creation transaction and blocks until one
// confirmation is observed. It never returns a record without a confirmed
// receipt, and it never submits when the balance cannot cover the estimated
// cost.
func (d *Deployer) Deploy(ctx context.Context, req Request) (*storage.Deployment, error) {
	from := d.signer.Address()
	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}
	data := append(append([]byte{}, req.Bytecode...), req.ConstructorArgs...)

	// Preflight: the RPC endpoint must actually be the configured chain
	chainID, err := retryCall(ctx, d.opts.Retry, d.logger, "eth_chainId", func() (*big.Int, error) {
		return d.backend.ChainID(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching chain ID: %w", err)
	}
	if chainID.Uint64() != d.network.ChainID {
		return nil, fmt.Errorf("%w: rpc reports %d, configured %d", ErrChainMismatch, chainID.Uint64(), d.network.ChainID)
	}

	nonce, err := retryCall(ctx, d.opts.Retry, d.logger, "eth_getTransactionCount", func() (uint64, error) {
		return d.backend.PendingNonceAt(ctx, from)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching nonce: %w", err)
	}

	gasPrice, err := retryCall(ctx, d.opts.Retry, d.logger, "eth_gasPrice", func() (*big.Int, error) {
		return d.backend.SuggestGasPrice(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching gas price: %w", err)
	}

	gasLimit, err := retryCall(ctx, d.opts.Retry, d.logger, "eth_estimateGas", func() (uint64, error) {
		return d.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: nil, Value: value, Data: data})
	})
	if err != nil {
		if isInsufficientFunds(err) {
			return nil, fundingError(from, nil, nil)
		}
		return nil, fmt.Errorf("estimating gas: %w", err)
	}

	// Balance check happens before the transaction is submitted
	balance, err := retryCall(ctx, d.opts.Retry, d.logger, "eth_getBalance", func() (*big.Int, error) {
		return d.backend.BalanceAt(ctx, from, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching balance: %w", err)
	}
	cost := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), gasPrice)
	cost.Add(cost, value)
	if balance.Cmp(cost) < 0 {
		return nil, fundingError(from, cost, balance)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       nil,
		Value:    value,
		Data:     data,
	})
	signed, err := d.signer.SignTx(tx, chainID)
	if err != nil {
		return nil, err
	}

	d.logger.Info("submitting deployment",
		"contract", req.ContractName,
		"from", from.Hex(),
		"nonce", nonce,
		"gasLimit", gasLimit,
	)

	// Resubmitting the same signed transaction is idempotent (same hash),
	// so transient send failures are safe to retry.
	_, err = retryCall(ctx, d.opts.Retry, d.logger, "eth_sendRawTransaction", func() (struct{}, error) {
		sendErr := d.backend.SendTransaction(ctx, signed)
		if sendErr != nil && isAlreadyKnown(sendErr) {
			sendErr = nil
		}
		return struct{}{}, sendErr
	})
	if err != nil {
		if isNonceConflict(err) {
			return nil, fmt.Errorf("%w: %v", ErrNonceConflict, err)
		}
		if isInsufficientFunds(err) {
			return nil, fundingError(from, cost, balance)
		}
		return nil, fmt.Errorf("submitting transaction: %w", err)
	}

	receipt, err := d.waitForConfirmation(ctx, signed.Hash())
	if err != nil {
		return nil, err
	}

	d.logger.Info("deployment confirmed",
		"contract", req.ContractName,
		"address", receipt.ContractAddress.Hex(),
		"tx", signed.Hash().Hex(),
		"block", receipt.BlockNumber,
	)

	return &storage.Deployment{
		ContractName:    req.ContractName,
		Network:         d.network.Name,
		ChainID:         d.network.ChainID,
		Address:         receipt.ContractAddress.Hex(),
		TxHash:          signed.Hash().Hex(),
		BlockNumber:     receipt.BlockNumber.Int64(),
		DeployerAddress: from.Hex(),
		CompilerVersion: req.CompilerVersion,
		DeployedAt:      time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// waitForConfirmation polls for the transaction receipt until one
// confirmation is observed, bounded by the configured timeout.
func (d *Deployer) waitForConfirmation(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	deadline := time.Now().Add(d.opts.ConfirmationTimeout)

	for {
		receipt, err := d.backend.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return nil, fmt.Errorf("%w: tx %s", ErrReverted, txHash.Hex())
			}
			return receipt, nil
		case errors.Is(err, ethereum.NotFound) || isTransient(err):
			// Not mined yet, or a transient RPC hiccup; keep polling
		default:
			return nil, fmt.Errorf("fetching receipt: %w", err)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: tx %s not confirmed within %s", ErrConfirmationTimeout, txHash.Hex(), d.opts.ConfirmationTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.opts.PollInterval):
		}
	}
}

func fundingError(from common.Address, needed, have *big.Int) error {
	if needed != nil && have != nil {
		return fmt.Errorf("%w: account %s holds %s wei but the deployment needs about %s wei; fund the account and retry",
			ErrInsufficientFunds, from.Hex(), have, needed)
	}
	return fmt.Errorf("%w: fund account %s and retry", ErrInsufficientFunds, from.Hex())
}

func isInsufficientFunds(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "insufficient funds")
}

func isNonceConflict(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "nonce too low") ||
		strings.Contains(s, "invalid nonce") ||
		strings.Contains(s, "replacement transaction underpriced")
}

func isAlreadyKnown(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already known") || strings.Contains(s, "transaction already exists")
}
