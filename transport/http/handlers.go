package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/service"
	"go.uber.org/zap"
)

// AuthHandlers contains HTTP handlers for the wallet auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	log         *zap.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, log *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		log:         log,
	}
}

// Account and address ids are snowflakes, too large for JavaScript numbers.
type addressResponse struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	Network   string `json:"network"`
	CanAuth   bool   `json:"can_auth"`
	CreatedAt int64  `json:"created_at"`
}

func newAddressResponse(a core.LinkedAddress) addressResponse {
	return addressResponse{
		ID:        strconv.FormatInt(a.ID, 10),
		Address:   a.Address,
		Network:   a.NetworkID,
		CanAuth:   a.CanAuth,
		CreatedAt: a.CreatedAt.Unix(),
	}
}

type sessionResponse struct {
	ID        string `json:"id"`
	Current   bool   `json:"current"`
	Address   string `json:"address"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
	IsActive  bool   `json:"is_active"`
}

// Challenge issues a nonce-bound login challenge
func (h *AuthHandlers) Challenge(c *gin.Context) {
	challenge, token, err := h.authService.CreateChallenge(c.Request.Context())
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"challenge":  token,
		"message":    challenge.Message(),
		"expires_at": challenge.ExpiresAt.Unix(),
	})
}

type signedRequest struct {
	Address   string `json:"address" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// Login handles the login request
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		signedRequest
		Challenge string `json:"challenge"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, "Invalid request, expected address, message and signature")
		return
	}

	outcome, err := h.authService.Login(c.Request.Context(), service.LoginRequest{
		Address:   req.Address,
		Message:   req.Message,
		Signature: req.Signature,
		Challenge: req.Challenge,
	})
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":    outcome.Token,
		"token_type":      "Bearer",
		"expires_at":      outcome.Session.ExpiresAt.Unix(),
		"address":         outcome.Session.Address,
		"account_created": outcome.Kind == core.LoginCreated,
	})
}

// Verify checks a signature without issuing a session
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req signedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, "Invalid request, expected address, message and signature")
		return
	}

	address, err := h.authService.Verify(c.Request.Context(), req.Address, req.Message, req.Signature)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"address": address, "valid": true})
}

// Tokens lists the account's sessions
func (h *AuthHandlers) Tokens(c *gin.Context) {
	views, err := h.authService.ListSessions(c.Request.Context(), currentSession(c))
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}

	out := make([]sessionResponse, 0, len(views))
	for _, v := range views {
		out = append(out, sessionResponse{
			ID:        v.ID,
			Current:   v.Current,
			Address:   v.Address,
			CreatedAt: v.CreatedAt.Unix(),
			ExpiresAt: v.ExpiresAt.Unix(),
			IsActive:  v.Active,
		})
	}
	c.JSON(http.StatusOK, out)
}

// Deactivate revokes one of the account's sessions
func (h *AuthHandlers) Deactivate(c *gin.Context) {
	var req struct {
		TokenID string `json:"token_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, "Invalid request, expected token_id")
		return
	}

	result, err := h.authService.RevokeSession(c.Request.Context(), currentSession(c), req.TokenID)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}

	msg := "Session deactivated"
	if result.LoggedOut {
		msg = "Current session deactivated, logged out"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "logout": result.LoggedOut})
}

// Logout revokes the bearer's own session. Already revoked or expired
// tokens still log out.
func (h *AuthHandlers) Logout(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Missing bearer token"})
		return
	}

	if _, err := h.authService.Logout(c.Request.Context(), token); err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out", "logout": true})
}

// Addresses lists the account's linked addresses
func (h *AuthHandlers) Addresses(c *gin.Context) {
	addrs, err := h.authService.ListAddresses(c.Request.Context(), currentSession(c))
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}

	out := make([]addressResponse, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, newAddressResponse(a))
	}
	c.JSON(http.StatusOK, out)
}

// LinkAddress links a new address to the account
func (h *AuthHandlers) LinkAddress(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
		Network string `json:"network"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, "Invalid request, expected address and network")
		return
	}

	linked, err := h.authService.LinkAddress(c.Request.Context(), currentSession(c), req.Address, req.Network)
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, newAddressResponse(linked))
}

// SetAddressAuth enables or disables login with an address
func (h *AuthHandlers) SetAddressAuth(c *gin.Context) {
	var req struct {
		Enable    *bool  `json:"enable" binding:"required"`
		Message   string `json:"message"`
		Signature string `json:"signature"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, "Invalid request, expected enable")
		return
	}

	updated, err := h.authService.SetAddressAuth(c.Request.Context(), currentSession(c), service.SetAuthRequest{
		Address:   c.Param("address"),
		Enable:    *req.Enable,
		Message:   req.Message,
		Signature: req.Signature,
	})
	if err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newAddressResponse(updated[0]))
}

// Sync asks the ingestion workers to refresh the account's portfolio
func (h *AuthHandlers) Sync(c *gin.Context) {
	kind := core.SyncKind(c.Param("kind"))
	if err := h.authService.RequestSync(c.Request.Context(), currentSession(c), kind); err != nil {
		abortWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Sync requested: " + string(kind)})
}

// Chains lists the network directory sorted by name
func (h *AuthHandlers) Chains(c *gin.Context) {
	c.JSON(http.StatusOK, h.authService.Networks())
}
