package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"delegate-api/internal/services"
	"delegate-api/internal/types"
)

// VerificationHandler exposes the identity↔wallet verification flow.
type VerificationHandler struct {
	common *CommonServices
}

// NewVerificationHandler creates a new VerificationHandler instance.
func NewVerificationHandler(common *CommonServices) *VerificationHandler {
	return &VerificationHandler{common: common}
}

// ChallengeRequest asks for a message to sign.
type ChallengeRequest struct {
	Identity string `json:"identity" binding:"required"`
	Handle   string `json:"handle"`
}

// IssueChallenge godoc
// @Summary      Issue a verification challenge
// @Description  Returns a unique message the user signs with their wallet to prove control
// @Tags         verification
// @Accept       json
// @Produce      json
// @Param        request  body      ChallengeRequest  true  "Identity to verify"
// @Success      200  {object}  services.Challenge
// @Failure      400  {object}  ErrorResponse
// @Router       /verify/message [post]
func (h *VerificationHandler) IssueChallenge(c *gin.Context) {
	var req ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	challenge, err := h.common.verification.IssueChallenge(c.Request.Context(), req.Identity, req.Handle)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Failed to issue challenge", err)
		return
	}
	c.JSON(http.StatusOK, challenge)
}

// VerifySignatureRequest carries the signed challenge.
type VerifySignatureRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"` // 0x-prefixed 65-byte hex
	Message   string `json:"message" binding:"required"`
	Identity  string `json:"identity" binding:"required"`
	Handle    string `json:"handle"`
}

// VerifySignature godoc
// @Summary      Verify a signed challenge
// @Description  Recovers the signer from the signature and records the identity-wallet link
// @Tags         verification
// @Accept       json
// @Produce      json
// @Param        request  body      VerifySignatureRequest  true  "Signed challenge"
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  ErrorResponse  "Signature mismatch or expired challenge"
// @Router       /verify/signature [post]
func (h *VerificationHandler) VerifySignature(c *gin.Context) {
	var req VerifySignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	signature, err := hexutil.Decode(req.Signature)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Signature is not valid hex", err)
		return
	}

	_, err = h.common.verification.Verify(c.Request.Context(), services.VerifyParams{
		Address:   req.Address,
		Signature: signature,
		Message:   req.Message,
		Identity:  req.Identity,
		Handle:    req.Handle,
	})
	if err != nil {
		if types.IsKind(err, types.KindSignatureMismatch) || types.IsKind(err, types.KindChallengeExpired) {
			sendEngineError(c, err)
			return
		}
		sendError(c, http.StatusInternalServerError, "Failed to record verified link", err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// LinkStatusResponse describes whether an identity has a verified wallet.
type LinkStatusResponse struct {
	Linked        bool   `json:"linked"`
	WalletAddress string `json:"wallet_address,omitempty"`
	Handle        string `json:"handle,omitempty"`
	VerifiedAt    string `json:"verified_at,omitempty"`
}

// LinkStatus godoc
// @Summary      Check verification status
// @Description  Reports the active verified wallet for a messaging identity
// @Tags         verification
// @Produce      json
// @Param        identity  path      string  true  "Messaging identity"
// @Success      200  {object}  LinkStatusResponse
// @Router       /verify/status/{identity} [get]
func (h *VerificationHandler) LinkStatus(c *gin.Context) {
	identity := c.Param("identity")

	link, err := h.common.verification.Status(c.Request.Context(), identity)
	if err != nil {
		// No active link is a normal answer; anything else is a storage
		// fault and must not masquerade as "not linked".
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusOK, LinkStatusResponse{Linked: false})
			return
		}
		handleDBError(c, err, "Verified link not found")
		return
	}
	c.JSON(http.StatusOK, LinkStatusResponse{
		Linked:        true,
		WalletAddress: link.WalletAddress,
		Handle:        link.Handle,
		VerifiedAt:    link.VerifiedAt.UTC().Format(time.RFC3339),
	})
}

// LinkRecord is one row of an identity's verification history.
type LinkRecord struct {
	WalletAddress string `json:"wallet_address"`
	Handle        string `json:"handle,omitempty"`
	VerifiedAt    string `json:"verified_at,omitempty"`
	Active        bool   `json:"active"`
}

// LinkHistoryResponse lists every link recorded for an identity, newest
// first, including superseded and revoked ones.
type LinkHistoryResponse struct {
	Links []LinkRecord `json:"links"`
}

// LinkHistory godoc
// @Summary      List verification history
// @Description  Returns every wallet link ever recorded for the identity, including superseded and revoked ones
// @Tags         verification
// @Produce      json
// @Param        identity  path      string  true  "Messaging identity"
// @Success      200  {object}  LinkHistoryResponse
// @Router       /verify/links/{identity} [get]
func (h *VerificationHandler) LinkHistory(c *gin.Context) {
	identity := c.Param("identity")

	links, err := h.common.verification.History(c.Request.Context(), identity)
	if err != nil {
		handleDBError(c, err, "Verified link not found")
		return
	}

	records := make([]LinkRecord, 0, len(links))
	for _, link := range links {
		record := LinkRecord{
			WalletAddress: link.WalletAddress,
			Handle:        link.Handle,
			Active:        link.Active,
		}
		if !link.VerifiedAt.IsZero() {
			record.VerifiedAt = link.VerifiedAt.UTC().Format(time.RFC3339)
		}
		records = append(records, record)
	}
	c.JSON(http.StatusOK, LinkHistoryResponse{Links: records})
}

// RevokeRequest names the identity whose link should be deactivated.
type RevokeRequest struct {
	Identity string `json:"identity" binding:"required"`
}

// RevokeLink godoc
// @Summary      Revoke a verified link
// @Description  Deactivates the identity's wallet link without deleting audit history
// @Tags         verification
// @Accept       json
// @Produce      json
// @Param        request  body      RevokeRequest  true  "Identity to revoke"
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /verify/revoke [post]
func (h *VerificationHandler) RevokeLink(c *gin.Context) {
	var req RevokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if _, err := h.common.verification.Revoke(c.Request.Context(), req.Identity); err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to revoke link", err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}
