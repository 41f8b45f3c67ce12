// Package chain computes blockchain anchor hashes for committed journal
// entries. Anchoring is an annotation, never a gate: the ledger commits first
// and the hash is attached afterwards, best-effort.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/brickfolio/brickfolio/internal/domain"
)

// Config holds anchoring parameters. RPCURL is optional: without it the
// anchor hash is computed purely from the entry's immutable fields; with it
// the hash additionally binds the chain head observed at anchoring time.
type Config struct {
	RPCURL  string
	Timeout time.Duration
}

// Anchorer hashes committed journal entries with keccak256. It implements
// ledger.Anchorer.
type Anchorer struct {
	client  *ethclient.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an Anchorer. When cfg.RPCURL is set it dials the endpoint once
// up front so misconfiguration fails at startup rather than on the first
// anchor.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Anchorer, error) {
	a := &Anchorer{
		timeout: cfg.Timeout,
		logger:  logger.With(slog.String("component", "chain")),
	}
	if a.timeout <= 0 {
		a.timeout = 5 * time.Second
	}

	if strings.TrimSpace(cfg.RPCURL) != "" {
		client, err := ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
		}
		a.client = client
	}
	return a, nil
}

// Close releases the RPC connection, if any.
func (a *Anchorer) Close() {
	if a.client != nil {
		a.client.Close()
	}
}

// Anchor returns the hex-encoded keccak256 hash of the entry's canonical
// payload. When an RPC client is configured, the current head block hash is
// folded into the digest, tying the annotation to an observable point on
// chain.
func (a *Anchorer) Anchor(ctx context.Context, tx domain.Transaction) (string, error) {
	payload := canonicalPayload(tx)

	if a.client != nil {
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		header, err := a.client.HeaderByNumber(ctx, nil)
		if err != nil {
			// Degrade to a pure content hash rather than dropping the anchor.
			a.logger.WarnContext(ctx, "chain: head lookup failed, anchoring without block",
				slog.String("transaction_id", tx.ID),
				slog.String("error", err.Error()),
			)
		} else {
			payload = append(payload, header.Hash().Bytes()...)
		}
	}

	digest := ethcrypto.Keccak256(payload)
	return hexutil.Encode(digest), nil
}

// canonicalPayload serializes the immutable identity of a journal entry into
// a fixed field order. Only fields that never change after creation
// participate, so the hash is stable for the entry's lifetime.
func canonicalPayload(tx domain.Transaction) []byte {
	fields := []string{
		tx.ID,
		tx.UserID,
		string(tx.Type),
		tx.Amount.String(),
		string(tx.Currency),
		strconv.FormatInt(tx.CreatedAt.UTC().UnixNano(), 10),
	}
	if tx.Related != nil {
		fields = append(fields, string(tx.Related.Type), tx.Related.ID)
	}
	return []byte(strings.Join(fields, "|"))
}

// VerifyContentHash recomputes the pure content hash for an entry and
// compares it to the given annotation. It only applies to anchors produced
// without a chain head; block-bound anchors cannot be recomputed offline.
func VerifyContentHash(tx domain.Transaction, anchor string) (bool, error) {
	want := hexutil.Encode(ethcrypto.Keccak256(canonicalPayload(tx)))
	got := anchor
	if !strings.HasPrefix(got, "0x") {
		got = "0x" + got
	}
	if len(got) != len(want) {
		return false, fmt.Errorf("chain: anchor %q has unexpected length", anchor)
	}
	return strings.EqualFold(got, want), nil
}

// AddressFromHex normalizes a hex address string, useful when entry metadata
// carries on-chain counterparties.
func AddressFromHex(s string) (string, error) {
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("chain: %q is not a hex address", s)
	}
	return common.HexToAddress(s).Hex(), nil
}
