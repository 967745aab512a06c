package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
)

const (
	ctxUserID = "userID"
	ctxWallet = "wallet"
)

// UserClaims are the session claims issued by the web app. Subject is the user id.
type UserClaims struct {
	Wallet string `json:"wallet"`
	jwt.RegisteredClaims
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "unauthorized"})
}

// cronAuth admits only requests carrying the shared cron secret. An empty
// secret rejects everything.
func cronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok || secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			log.WithFields(log.Fields{
				"path":   c.Request.URL.Path,
				"remote": c.ClientIP(),
			}).Warn("Rejected cron request")
			unauthorized(c)
			return
		}
		c.Next()
	}
}

// userAuth validates an HS256 session token and stores the caller identity
func userAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30*time.Second),
		jwt.WithExpirationRequired(),
	)

	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok || len(key) == 0 {
			unauthorized(c)
			return
		}

		var claims UserClaims
		parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
			return key, nil
		})
		if err != nil || !parsed.Valid || claims.Subject == "" {
			if err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
				log.WithError(err).Debug("Rejected session token")
			}
			unauthorized(c)
			return
		}

		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxWallet, claims.Wallet)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("Request failed")
			return
		}
		entry.Debug("Request served")
	}
}
