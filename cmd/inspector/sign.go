package main

import (
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/GoPolymarket/levergate/internal/config"
	"github.com/GoPolymarket/levergate/internal/middleware"
	"github.com/GoPolymarket/levergate/internal/signer"
	"github.com/spf13/pflag"
)

// runSign prints the auth headers for one keeper call, signed with the key
// from --key or KEEPER_PRIVATE_KEY against the configured auth domain.
func runSign(args []string) {
	fs := pflag.NewFlagSet("sign", pflag.ExitOnError)
	key := fs.String("key", os.Getenv("KEEPER_PRIVATE_KEY"), "hex private key of the calling keeper")
	action := fs.String("action", "POST /v1/strategy/rebalance", "route being called, as METHOD PATH")
	exchange := fs.String("exchange", "", "venue the call is signed for")
	nonce := fs.Int64("nonce", 0, "caller nonce (default: unix millis)")
	ttl := fs.Duration("ttl", time.Minute, "signature lifetime")
	_ = fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fail("load config", err)
	}
	s, err := signer.NewSigner(strings.TrimPrefix(*key, "0x"), signer.Domain{
		Name:    cfg.Auth.DomainName,
		Version: cfg.Auth.DomainVersion,
		ChainID: cfg.Auth.ChainID,
	})
	if err != nil {
		fail("--key", err)
	}

	n := *nonce
	if n == 0 {
		n = time.Now().UnixMilli()
	}
	headers, err := signedHeaders(s, *action, *exchange, big.NewInt(n), time.Now().Add(*ttl))
	if err != nil {
		fail("sign", err)
	}
	for _, name := range []string{
		middleware.HeaderCaller,
		middleware.HeaderNonce,
		middleware.HeaderDeadline,
		middleware.HeaderExchange,
		middleware.HeaderSignature,
	} {
		fmt.Printf("%s: %s\n", name, headers.Get(name))
	}
}

// signedHeaders builds the header set CallerAuth verifies for action on exchange.
func signedHeaders(s *signer.Signer, action, exchange string, nonce *big.Int, deadline time.Time) (http.Header, error) {
	call := &signer.KeeperCall{
		Caller:   s.Address(),
		Action:   action,
		Exchange: exchange,
		Nonce:    nonce,
		Deadline: big.NewInt(deadline.Unix()),
	}
	sig, err := s.SignCall(call)
	if err != nil {
		return nil, err
	}

	h := http.Header{}
	h.Set(middleware.HeaderCaller, s.Address().Hex())
	h.Set(middleware.HeaderNonce, nonce.String())
	h.Set(middleware.HeaderDeadline, strconv.FormatInt(deadline.Unix(), 10))
	h.Set(middleware.HeaderExchange, exchange)
	h.Set(middleware.HeaderSignature, sig)
	return h, nil
}
