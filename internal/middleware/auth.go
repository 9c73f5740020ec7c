package middleware

import (
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/GoPolymarket/levergate/internal/config"
	"github.com/GoPolymarket/levergate/internal/manager"
	"github.com/GoPolymarket/levergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/levergate/internal/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const (
	HeaderCaller    = "X-Caller"
	HeaderNonce     = "X-Nonce"
	HeaderDeadline  = "X-Deadline"
	HeaderSignature = "X-Signature"
	HeaderExchange  = "X-Exchange"

	ContextCallerKey         = "caller"
	ContextSignedKey         = "signed"
	ContextSignedExchangeKey = "signed_exchange"
)

// CallerAuth resolves the calling address. With signatures required the
// X-Caller header must be backed by an EIP-712 KeeperCall signature over the
// route, the X-Exchange header, a fresh nonce and a deadline.
func CallerAuth(cfg config.AuthConfig, nonces *manager.NonceManager) gin.HandlerFunc {
	domain := signer.Domain{
		Name:    cfg.DomainName,
		Version: cfg.DomainVersion,
		ChainID: cfg.ChainID,
	}
	maxSkew := time.Duration(cfg.MaxDeadlineSkew) * time.Second

	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderCaller))
		if !common.IsHexAddress(raw) {
			abort(c, apperrors.Unauthorized("missing or invalid "+HeaderCaller+" header"))
			return
		}
		caller := common.HexToAddress(raw)

		if !cfg.RequireSignature {
			c.Set(ContextCallerKey, caller)
			c.Next()
			return
		}

		nonce, ok := new(big.Int).SetString(c.GetHeader(HeaderNonce), 10)
		if !ok {
			abort(c, apperrors.Unauthorized("missing or invalid "+HeaderNonce+" header"))
			return
		}
		deadline, ok := new(big.Int).SetString(c.GetHeader(HeaderDeadline), 10)
		if !ok || !deadline.IsInt64() {
			abort(c, apperrors.Unauthorized("missing or invalid "+HeaderDeadline+" header"))
			return
		}
		now := time.Now()
		expires := time.Unix(deadline.Int64(), 0)
		if expires.Before(now) {
			abort(c, apperrors.Unauthorized("signature expired").WithDetail("deadline", expires.UTC()))
			return
		}
		if maxSkew > 0 && expires.After(now.Add(maxSkew)) {
			abort(c, apperrors.Unauthorized("deadline too far in the future").
				WithDetail("max_deadline_seconds", cfg.MaxDeadlineSkew))
			return
		}

		exchange := strings.TrimSpace(c.GetHeader(HeaderExchange))
		call := &signer.KeeperCall{
			Caller:   caller,
			Action:   c.Request.Method + " " + c.FullPath(),
			Exchange: exchange,
			Nonce:    nonce,
			Deadline: deadline,
		}
		if err := signer.VerifyCall(domain, call, c.GetHeader(HeaderSignature)); err != nil {
			abort(c, apperrors.New(apperrors.ErrUnauthorized, "invalid signature", err))
			return
		}
		if err := nonces.Consume(c.Request.Context(), caller, nonce); err != nil {
			if errors.Is(err, manager.ErrNonceUsed) {
				abort(c, apperrors.New(apperrors.ErrUnauthorized, "nonce already used", err).
					WithDetail("next_nonce", nonces.Next(caller).String()))
				return
			}
			abort(c, apperrors.Upstream("nonce store unavailable", err))
			return
		}

		c.Set(ContextCallerKey, caller)
		c.Set(ContextSignedKey, true)
		c.Set(ContextSignedExchangeKey, exchange)
		c.Next()
	}
}

// CallerFrom returns the address set by CallerAuth.
func CallerFrom(c *gin.Context) (common.Address, bool) {
	v, ok := c.Get(ContextCallerKey)
	if !ok {
		return common.Address{}, false
	}
	caller, ok := v.(common.Address)
	return caller, ok
}

// RequireSignedExchange rejects a request whose body names a different venue
// than the one that was signed. Unsigned requests pass.
func RequireSignedExchange(c *gin.Context, exchange string) error {
	if !c.GetBool(ContextSignedKey) {
		return nil
	}
	if signed := c.GetString(ContextSignedExchangeKey); signed != exchange {
		return apperrors.Unauthorized("signed exchange does not match request").
			WithDetail("signed_exchange", signed).
			WithDetail("exchange", exchange)
	}
	return nil
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
