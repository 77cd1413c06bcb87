package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/core"
	"go.uber.org/zap"
)

type errorMapping struct {
	err    error
	status int
	detail string
}

// Ordered, first match wins.
var errorMappings = []errorMapping{
	{core.ErrSignatureMismatch, http.StatusBadRequest, "Signature does not match the address"},
	{core.ErrMalformedSignature, http.StatusBadRequest, "Malformed signature, expected a 65 byte hex string"},
	{core.ErrInvalidAddress, http.StatusBadRequest, "Invalid Ethereum address"},
	{core.ErrInvalidNetwork, http.StatusBadRequest, "Unknown network, see /chains"},
	{core.ErrInvalidChallenge, http.StatusBadRequest, "Invalid or expired login challenge, request a new one and sign it"},
	{core.ErrChallengeUsed, http.StatusBadRequest, "Login challenge already used, request a new one"},
	{core.ErrInvalidProof, http.StatusBadRequest, "To enable an address, sign 'Authorize address <address>' with that address"},
	{core.ErrInvalidSyncRequest, http.StatusBadRequest, "Unknown sync kind, expected protocols, tokens or history"},

	{core.ErrTokenExpired, http.StatusUnauthorized, "Session expired, please log in again"},
	{core.ErrSessionRevoked, http.StatusUnauthorized, "Session has been revoked, please log in again"},
	{core.ErrInvalidToken, http.StatusUnauthorized, "Invalid token"},

	{core.ErrAddressNotAuthorized, http.StatusForbidden, "Address is not authorized to log in. Enable it from a session of an already authorized address"},

	{core.ErrSessionNotFound, http.StatusNotFound, "Session not found"},
	{core.ErrAddressNotFound, http.StatusNotFound, "Address is not linked to this account"},

	{core.ErrAlreadyLinked, http.StatusConflict, "Address is already linked on this network"},
	{core.ErrLastAuthAddress, http.StatusConflict, "Cannot disable the last authorized address. Enable another address first"},
	{core.ErrCannotDisableCurrent, http.StatusConflict, "Cannot disable the address of the current session. Log in with another authorized address first"},
}

// statusFor maps a service error to its HTTP status and user facing detail
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.detail
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

func abortWithError(c *gin.Context, log *zap.Logger, err error) {
	status, detail := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func abortBadRequest(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": detail})
}
