package relay

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// KeyReference names the session key a prepared batch will be signed with.
// Type must match what the grant ceremony registered for the key.
type KeyReference struct {
	Type     string `json:"type"`
	PublicID string `json:"publicId"`
}

// PrepareCall is one call inside a prepare request.
type PrepareCall struct {
	To    string        `json:"to"`
	Data  hexutil.Bytes `json:"data"`
	Value *hexutil.Big  `json:"value,omitempty"`
}

// PrepareRequest asks the relay to stage a call batch and produce the digest
// the session key must sign. Atomicity is always required: the relay executes
// the whole batch or none of it.
type PrepareRequest struct {
	ChainID        uint64        `json:"chainId"`
	From           string        `json:"from"`
	Calls          []PrepareCall `json:"calls"`
	AtomicRequired bool          `json:"atomicRequired"`
	Key            KeyReference  `json:"key"`
}

// PrepareResponse carries the signable digest plus relay-assigned context.
// Context is opaque: it is forwarded verbatim on submit, never inspected or
// reconstructed.
type PrepareResponse struct {
	Digest          hexutil.Bytes   `json:"digest"`
	Context         json.RawMessage `json:"context"`
	Atomicity       string          `json:"atomicity,omitempty"`
	FeeCapabilities json.RawMessage `json:"feeCapabilities,omitempty"`
}

// SubmitRequest completes a prepared batch with the session key's signature.
type SubmitRequest struct {
	Context      json.RawMessage `json:"context"`
	Key          KeyReference    `json:"key"`
	Signature    hexutil.Bytes   `json:"signature"`
	FeeSignature hexutil.Bytes   `json:"feeSignature,omitempty"`
}

// SubmitResult is the normalized completion result. The relay returns either
// a single object or an array whose first element is the result; the client
// folds both shapes into this one.
type SubmitResult struct {
	BatchID           string   `json:"id"`
	Status            string   `json:"status,omitempty"`
	TransactionHashes []string `json:"transactionHashes,omitempty"`
}

// Error is a failure reported by the relay itself, as opposed to a transport
// failure reaching it. The relay's error surface is free text; Message is
// kept verbatim for classification.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("relay error (status %d): %s", e.StatusCode, e.Message)
}
