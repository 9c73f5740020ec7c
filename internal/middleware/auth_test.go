package middleware

import (
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/GoPolymarket/levergate/internal/config"
	"github.com/GoPolymarket/levergate/internal/manager"
	"github.com/GoPolymarket/levergate/internal/signer"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var authCfg = config.AuthConfig{
	RequireSignature: true,
	ChainID:          137,
	DomainName:       "Levergate",
	DomainVersion:    "1",
	MaxDeadlineSkew:  600,
}

func newAuthRouter(cfg config.AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.POST("/v1/strategy/rebalance", CallerAuth(cfg, manager.NewNonceManager(nil)), func(c *gin.Context) {
		caller, _ := CallerFrom(c)
		if err := RequireSignedExchange(c, c.Query("exchange")); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"caller": caller.Hex()})
	})
	return r
}

type signedRequest struct {
	signer   *signer.Signer
	nonce    int64
	deadline int64
	exchange string
}

func (s signedRequest) build(t *testing.T, query string) *http.Request {
	t.Helper()
	call := &signer.KeeperCall{
		Caller:   s.signer.Address(),
		Action:   "POST /v1/strategy/rebalance",
		Exchange: s.exchange,
		Nonce:    big.NewInt(s.nonce),
		Deadline: big.NewInt(s.deadline),
	}
	sig, err := s.signer.SignCall(call)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/strategy/rebalance"+query, nil)
	req.Header.Set(HeaderCaller, s.signer.Address().Hex())
	req.Header.Set(HeaderNonce, strconv.FormatInt(s.nonce, 10))
	req.Header.Set(HeaderDeadline, strconv.FormatInt(s.deadline, 10))
	req.Header.Set(HeaderExchange, s.exchange)
	req.Header.Set(HeaderSignature, sig)
	return req
}

func newKeeperSigner(t *testing.T) *signer.Signer {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s, err := signer.NewSigner(hexutil.Encode(crypto.FromECDSA(key))[2:], signer.Domain{
		Name:    authCfg.DomainName,
		Version: authCfg.DomainVersion,
		ChainID: authCfg.ChainID,
	})
	require.NoError(t, err)
	return s
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCallerAuth_Signed(t *testing.T) {
	r := newAuthRouter(authCfg)
	s := newKeeperSigner(t)
	deadline := time.Now().Add(time.Minute).Unix()

	req := signedRequest{signer: s, nonce: 1, deadline: deadline, exchange: "uni"}
	rec := serve(r, req.build(t, "?exchange=uni"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), s.Address().Hex())

	// replay
	rec = serve(r, req.build(t, "?exchange=uni"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "nonce already used")

	// signed for another venue
	req.nonce = 2
	rec = serve(r, req.build(t, "?exchange=sushi"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "signed exchange")
}

func TestCallerAuth_Rejects(t *testing.T) {
	r := newAuthRouter(authCfg)
	s := newKeeperSigner(t)
	now := time.Now()

	t.Run("expired", func(t *testing.T) {
		req := signedRequest{signer: s, nonce: 10, deadline: now.Add(-time.Minute).Unix()}
		assert.Equal(t, http.StatusForbidden, serve(r, req.build(t, "")).Code)
	})

	t.Run("deadline too far", func(t *testing.T) {
		req := signedRequest{signer: s, nonce: 11, deadline: now.Add(time.Hour).Unix()}
		assert.Equal(t, http.StatusForbidden, serve(r, req.build(t, "")).Code)
	})

	t.Run("tampered exchange header", func(t *testing.T) {
		httpReq := signedRequest{signer: s, nonce: 12, deadline: now.Add(time.Minute).Unix(), exchange: "uni"}.build(t, "")
		httpReq.Header.Set(HeaderExchange, "sushi")
		rec := serve(r, httpReq)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid signature")
	})

	t.Run("missing caller", func(t *testing.T) {
		httpReq := httptest.NewRequest(http.MethodPost, "/v1/strategy/rebalance", nil)
		assert.Equal(t, http.StatusForbidden, serve(r, httpReq).Code)
	})
}

func TestCallerAuth_TrustedHeader(t *testing.T) {
	cfg := authCfg
	cfg.RequireSignature = false
	r := newAuthRouter(cfg)

	req := httptest.NewRequest(http.MethodPost, "/v1/strategy/rebalance?exchange=anything", nil)
	req.Header.Set(HeaderCaller, "0x0000000000000000000000000000000000000002")
	rec := serve(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
