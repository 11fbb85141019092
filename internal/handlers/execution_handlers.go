package handlers

import (
	"fmt"
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"

	"delegate-api/internal/calls"
	"delegate-api/internal/types"
)

// ExecutionHandler is the tool-layer surface the conversational front-end
// calls to run a delegated operation. It turns a structured operation request
// into a call batch and hands it to the execution engine.
type ExecutionHandler struct {
	common *CommonServices
}

// NewExecutionHandler creates a new ExecutionHandler instance.
func NewExecutionHandler(common *CommonServices) *ExecutionHandler {
	return &ExecutionHandler{common: common}
}

// Operation names the supported delegated operations.
const (
	OperationTransfer           = "transfer"
	OperationApproveAndTransfer = "approve_and_transfer"
	OperationApproveAndSwap     = "approve_and_swap"
	OperationMint               = "mint"
)

// ExecuteRequest describes one delegated operation. Exactly one of identity
// or wallet_address selects the account: identity goes through the verified
// link, wallet_address is used directly by trusted internal callers.
type ExecuteRequest struct {
	Identity      string `json:"identity"`
	WalletAddress string `json:"wallet_address"`
	Operation     string `json:"operation" binding:"required"`

	Token        string   `json:"token"`
	Contract     string   `json:"contract"`
	Recipient    string   `json:"recipient"`
	Spender      string   `json:"spender"`
	Router       string   `json:"router"`
	Amount       string   `json:"amount"`         // decimal string
	AmountOutMin string   `json:"amount_out_min"` // decimal string
	Path         []string `json:"path"`
	Deadline     int64    `json:"deadline"` // unix seconds
}

func parseAmount(name, value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%s is not a valid decimal amount: %q", name, value)
	}
	return amount, nil
}

func (r *ExecuteRequest) buildBatch() (types.DelegatedCallBatch, error) {
	switch r.Operation {
	case OperationTransfer:
		amount, err := parseAmount("amount", r.Amount)
		if err != nil {
			return nil, err
		}
		return calls.BuildTransfer(r.Token, r.Recipient, amount)

	case OperationApproveAndTransfer:
		amount, err := parseAmount("amount", r.Amount)
		if err != nil {
			return nil, err
		}
		return calls.BuildApproveAndTransfer(r.Token, r.Spender, r.Recipient, amount)

	case OperationApproveAndSwap:
		amountIn, err := parseAmount("amount", r.Amount)
		if err != nil {
			return nil, err
		}
		amountOutMin, err := parseAmount("amount_out_min", r.AmountOutMin)
		if err != nil {
			return nil, err
		}
		return calls.BuildApproveAndSwap(r.Token, r.Router, amountIn, amountOutMin, r.Path, r.Recipient, big.NewInt(r.Deadline))

	case OperationMint:
		amount, err := parseAmount("amount", r.Amount)
		if err != nil {
			return nil, err
		}
		return calls.BuildMint(r.Contract, r.Recipient, amount)

	default:
		return nil, fmt.Errorf("unsupported operation %q", r.Operation)
	}
}

// Execute godoc
// @Summary      Execute a delegated operation
// @Description  Builds the call batch for the operation and runs it through the relay under the caller's grant
// @Tags         execution
// @Accept       json
// @Produce      json
// @Param        request  body      ExecuteRequest  true  "Operation to execute"
// @Success      200  {object}  types.ExecutionOutcome
// @Failure      400  {object}  ErrorResponse
// @Router       /execute [post]
func (h *ExecutionHandler) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Identity == "" && req.WalletAddress == "" {
		sendError(c, http.StatusBadRequest, "Either identity or wallet_address is required", nil)
		return
	}

	batch, err := req.buildBatch()
	if err != nil {
		sendError(c, http.StatusBadRequest, "Failed to build call batch", err)
		return
	}

	var outcome types.ExecutionOutcome
	if req.Identity != "" {
		outcome = h.common.execution.ExecuteForIdentity(c.Request.Context(), req.Identity, batch)
	} else {
		outcome = h.common.execution.Execute(c.Request.Context(), req.WalletAddress, batch)
	}

	// The outcome is always structured; HTTP 200 carries failures too, the
	// caller branches on error_kind. Only transport-level handler problems
	// become non-200s.
	c.JSON(http.StatusOK, outcome)
}

// SessionKeyResponse exposes the backend key identifier for the grant
// ceremony UI.
type SessionKeyResponse struct {
	PublicIdentifier string `json:"public_identifier"`
	KeyType          string `json:"key_type"`
}

// SessionKey godoc
// @Summary      Backend session key identifier
// @Description  Returns the public identifier grants must name to authorize this deployment
// @Tags         execution
// @Produce      json
// @Success      200  {object}  SessionKeyResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /session-key [get]
func (h *ExecutionHandler) SessionKey(c *gin.Context) {
	keyID, err := h.common.sessionKeys.PublicIdentifier(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Session key unavailable", err)
		return
	}
	c.JSON(http.StatusOK, SessionKeyResponse{
		PublicIdentifier: keyID,
		KeyType:          h.common.sessionKeys.KeyType(),
	})
}
