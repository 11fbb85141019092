package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"delegate-api/internal/services"
	"delegate-api/internal/types"
)

// PermissionHandler receives grants completed in the external ceremony UI and
// answers grant queries.
type PermissionHandler struct {
	common *CommonServices
}

// NewPermissionHandler creates a new PermissionHandler instance.
func NewPermissionHandler(common *CommonServices) *PermissionHandler {
	return &PermissionHandler{common: common}
}

// SyncGrantRequest carries a completed permission grant.
type SyncGrantRequest struct {
	GrantID            string           `json:"grant_id"`
	WalletAddress      string           `json:"wallet_address" binding:"required"`
	BackendKeyPublicID string           `json:"backend_key_public_id" binding:"required"`
	Expiry             int64            `json:"expiry" binding:"required"` // unix seconds
	Scope              types.GrantScope `json:"scope" binding:"required"`
	Identity           string           `json:"identity"`
	Handle             string           `json:"handle"`
}

// SyncGrantResponse acknowledges a stored grant.
type SyncGrantResponse struct {
	Success bool   `json:"success"`
	GrantID string `json:"grant_id"`
}

// SyncGrant godoc
// @Summary      Sync a permission grant
// @Description  Stores a grant created by the off-engine grant ceremony
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Param        request  body      SyncGrantRequest  true  "Grant to store"
// @Success      200  {object}  SyncGrantResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /permissions/sync [post]
func (h *PermissionHandler) SyncGrant(c *gin.Context) {
	var req SyncGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// The grant must name this deployment's session key, otherwise nothing
	// here could ever exercise it.
	keyID, err := h.common.sessionKeys.PublicIdentifier(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Session key unavailable", err)
		return
	}
	if !types.SameAddress(req.BackendKeyPublicID, keyID) {
		sendError(c, http.StatusBadRequest, "Grant names an unknown backend key", nil)
		return
	}

	grantID, err := h.common.permissions.SyncGrant(c.Request.Context(), services.SyncGrantParams{
		GrantID:            req.GrantID,
		WalletAddress:      req.WalletAddress,
		BackendKeyPublicID: req.BackendKeyPublicID,
		Expiry:             time.Unix(req.Expiry, 0),
		Scope:              req.Scope,
		Identity:           req.Identity,
		Handle:             req.Handle,
	})
	if err != nil {
		sendError(c, http.StatusBadRequest, "Failed to store grant", err)
		return
	}
	c.JSON(http.StatusOK, SyncGrantResponse{Success: true, GrantID: grantID})
}

// WalletGrants godoc
// @Summary      Grant summary for a wallet
// @Description  Reports total and active grant counts and whether the backend session key is authorized
// @Tags         permissions
// @Produce      json
// @Param        wallet_address  path      string  true  "Wallet address"
// @Success      200  {object}  services.WalletSummary
// @Failure      400  {object}  ErrorResponse
// @Router       /permissions/wallet/{wallet_address} [get]
func (h *PermissionHandler) WalletGrants(c *gin.Context) {
	walletAddress := c.Param("wallet_address")
	if !types.IsAddressValid(walletAddress) {
		sendError(c, http.StatusBadRequest, "Invalid wallet address", nil)
		return
	}

	keyID, err := h.common.sessionKeys.PublicIdentifier(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Session key unavailable", err)
		return
	}

	summary, err := h.common.permissions.Summary(c.Request.Context(), walletAddress, keyID)
	if err != nil {
		handleDBError(c, err, "Failed to load grants")
		return
	}
	c.JSON(http.StatusOK, summary)
}
