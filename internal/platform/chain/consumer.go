// Package chain implements the domain.FeeConsumer against an on-chain pool
// manager contract. It packs setFee / overrideFee calls, signs them with the
// configured secp256k1 key, and submits them through an RPC client.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/apexpool/feetier/internal/domain"
)

// poolManagerABI covers the two fee entry points of the pool manager:
// a persistent fee update and a single-event override.
const poolManagerABI = `[
	{"type":"function","name":"setFee","stateMutability":"nonpayable",
	 "inputs":[{"name":"pool","type":"address"},{"name":"fee","type":"uint24"}],"outputs":[]},
	{"type":"function","name":"overrideFee","stateMutability":"nonpayable",
	 "inputs":[{"name":"pool","type":"address"},{"name":"fee","type":"uint24"}],"outputs":[]}
]`

// maxUint24 bounds the fee argument of the contract's uint24 parameter.
const maxUint24 = 1<<24 - 1

// Config holds the connection and signing parameters for the consumer.
type Config struct {
	RPCURL string
	// ChainID of the host chain, used for EIP-155 replay protection.
	ChainID int64
	// PoolManager is the hex address of the pool manager contract.
	PoolManager string
	// PrivateKeyHex is the hex-encoded secp256k1 signing key.
	PrivateKeyHex string
	// GasLimit for fee update transactions.
	GasLimit uint64
}

// Consumer submits fee updates on-chain. Pool IDs are resolved to contract
// addresses through the map supplied at construction.
type Consumer struct {
	client   *ethclient.Client
	abi      abi.ABI
	manager  common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	gasLimit uint64
	pools    map[string]common.Address
	logger   *slog.Logger
}

// New dials the RPC endpoint and prepares the consumer. pools maps pool ID to
// the pool's hex contract address.
func New(ctx context.Context, cfg Config, pools map[string]string, logger *slog.Logger) (*Consumer, error) {
	parsed, err := abi.JSON(strings.NewReader(poolManagerABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse abi: %w", err)
	}

	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain: invalid private key: %w", err)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
	}

	addrs := make(map[string]common.Address, len(pools))
	for id, hexAddr := range pools {
		if !common.IsHexAddress(hexAddr) {
			client.Close()
			return nil, fmt.Errorf("chain: pool %s has invalid address %q", id, hexAddr)
		}
		addrs[id] = common.HexToAddress(hexAddr)
	}

	return &Consumer{
		client:   client,
		abi:      parsed,
		manager:  common.HexToAddress(cfg.PoolManager),
		key:      key,
		from:     ethcrypto.PubkeyToAddress(key.PublicKey),
		chainID:  big.NewInt(cfg.ChainID),
		gasLimit: cfg.GasLimit,
		pools:    addrs,
		logger:   logger.With(slog.String("component", "chain_consumer")),
	}, nil
}

// ApplyPersistent updates the pool's standing fee.
func (c *Consumer) ApplyPersistent(ctx context.Context, poolID string, fee uint64) error {
	return c.send(ctx, "setFee", poolID, fee)
}

// ApplyOnce overrides the fee for a single pricing event.
func (c *Consumer) ApplyOnce(ctx context.Context, poolID string, fee uint64) error {
	return c.send(ctx, "overrideFee", poolID, fee)
}

// send packs, signs, and submits one fee update transaction.
func (c *Consumer) send(ctx context.Context, method, poolID string, fee uint64) error {
	addr, ok := c.pools[poolID]
	if !ok {
		return fmt.Errorf("chain: pool %s: %w", poolID, domain.ErrNotFound)
	}
	if fee > maxUint24 {
		return fmt.Errorf("chain: fee %d exceeds uint24: %w", fee, domain.ErrOverflow)
	}

	data, err := c.abi.Pack(method, addr, new(big.Int).SetUint64(fee))
	if err != nil {
		return fmt.Errorf("chain: pack %s: %w", method, err)
	}

	nonce, err := c.client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return fmt.Errorf("chain: pending nonce: %w", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("chain: suggest gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, c.manager, big.NewInt(0), c.gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return fmt.Errorf("chain: sign tx: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("chain: send %s for pool %s: %w", method, poolID, err)
	}

	c.logger.InfoContext(ctx, "fee update submitted",
		slog.String("method", method),
		slog.String("pool_id", poolID),
		slog.Uint64("fee", fee),
		slog.String("tx", signed.Hash().Hex()),
	)
	return nil
}

// Close releases the RPC connection.
func (c *Consumer) Close() {
	c.client.Close()
}
