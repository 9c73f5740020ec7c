package main

import (
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GoPolymarket/levergate/internal/config"
	"github.com/GoPolymarket/levergate/internal/manager"
	"github.com/GoPolymarket/levergate/internal/middleware"
	"github.com/GoPolymarket/levergate/internal/signer"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedHeadersPassCallerAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := config.AuthConfig{
		RequireSignature: true,
		ChainID:          137,
		DomainName:       "Levergate",
		DomainVersion:    "1",
		MaxDeadlineSkew:  600,
	}

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s, err := signer.NewSigner(hexutil.Encode(crypto.FromECDSA(key))[2:], signer.Domain{
		Name:    auth.DomainName,
		Version: auth.DomainVersion,
		ChainID: auth.ChainID,
	})
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.POST("/v1/strategy/iterate", middleware.CallerAuth(auth, manager.NewNonceManager(nil)), func(c *gin.Context) {
		if err := middleware.RequireSignedExchange(c, "uni"); err != nil {
			_ = c.Error(err)
			return
		}
		caller, _ := middleware.CallerFrom(c)
		c.String(http.StatusOK, caller.Hex())
	})

	call := func(action string, nonce int64) *httptest.ResponseRecorder {
		headers, err := signedHeaders(s, action, "uni", big.NewInt(nonce), time.Now().Add(time.Minute))
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/v1/strategy/iterate", nil)
		req.Header = headers
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := call("POST /v1/strategy/iterate", 1)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, s.Address().Hex(), w.Body.String())

	// signed for another route
	w = call("POST /v1/strategy/rebalance", 2)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
