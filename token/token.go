package token

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokenlens/tokenlens/config"
)

// DefaultChain is assumed when a request omits the chain code
const DefaultChain = "eth"

// Ref identifies a token as a normalized (address, chain) pair.
// Ref equality defines the dedup and cache key for the whole pipeline.
type Ref struct {
	Address string `json:"address"`
	Chain   string `json:"chain"`
}

// Key returns the canonical map/cache key for this token
func (r Ref) Key() string {
	return r.Chain + ":" + r.Address
}

func (r Ref) String() string {
	return r.Key()
}

// ValidationReason classifies why a raw request was rejected
type ValidationReason string

const (
	MalformedAddress ValidationReason = "malformed_address"
	UnsupportedChain ValidationReason = "unsupported_chain"
)

// ValidationError signals a malformed request. It is the only error the
// pipeline surfaces to callers as an exceptional outcome.
type ValidationError struct {
	Reason ValidationReason
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Reason, e.Detail)
}

// Validator checks raw (address, chain) pairs against the supported-chain
// table. It is pure: no I/O, no side effects.
type Validator struct {
	chains config.ChainTable
}

// NewValidator creates a validator for the given chain table
func NewValidator(chains config.ChainTable) *Validator {
	return &Validator{chains: chains}
}

// Validate normalizes rawAddress and rawChain and returns the token Ref.
// An empty chain falls back to DefaultChain. All supported chains use the
// EVM 20-byte hex address format.
func (v *Validator) Validate(rawAddress, rawChain string) (Ref, error) {
	chain := strings.ToLower(strings.TrimSpace(rawChain))
	if chain == "" {
		chain = DefaultChain
	}
	if _, ok := v.chains[chain]; !ok {
		return Ref{}, &ValidationError{
			Reason: UnsupportedChain,
			Detail: fmt.Sprintf("chain %q is not supported", chain),
		}
	}

	address := strings.ToLower(strings.TrimSpace(rawAddress))
	if !common.IsHexAddress(address) {
		return Ref{}, &ValidationError{
			Reason: MalformedAddress,
			Detail: fmt.Sprintf("address %q is not a valid contract address", rawAddress),
		}
	}

	return Ref{Address: address, Chain: chain}, nil
}
