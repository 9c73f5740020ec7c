package signer

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDomain = Domain{Name: "Levergate", Version: "1", ChainID: 1}

func newTestSigner(t testing.TB) *Signer {
	key, _ := crypto.GenerateKey()
	keyHex := hexutil.Encode(crypto.FromECDSA(key))[2:] // Remove 0x

	s, err := NewSigner(keyHex, testDomain)
	require.NoError(t, err)
	return s
}

func testCall(caller common.Address) *KeeperCall {
	return &KeeperCall{
		Caller:   caller,
		Action:   "POST /v1/strategy/rebalance",
		Exchange: "uniswap",
		Nonce:    big.NewInt(7),
		Deadline: big.NewInt(1800000000),
	}
}

func TestSigner_SignCall(t *testing.T) {
	s := newTestSigner(t)

	sig, err := s.SignCall(testCall(s.Address()))
	assert.NoError(t, err)
	assert.Equal(t, 132, len(sig)) // 0x + 65 bytes * 2 = 132

	_, err = s.SignCall(testCall(common.HexToAddress("0x0000000000000000000000000000000000000001")))
	assert.Error(t, err)
}

func TestDigestMatchesTypedDataHash(t *testing.T) {
	call := testCall(common.HexToAddress("0x00000000000000000000000000000000000000aa"))

	expected, _, err := apitypes.TypedDataAndHash(TypedData(testDomain, call))
	require.NoError(t, err)

	assert.Equal(t, expected, Digest(DomainSeparator(testDomain), call))
}

func TestVerifyCall(t *testing.T) {
	s := newTestSigner(t)
	call := testCall(s.Address())

	sig, err := s.SignCall(call)
	require.NoError(t, err)

	assert.NoError(t, VerifyCall(testDomain, call, sig))

	recovered, err := RecoverCaller(testDomain, call, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), recovered)

	// any field change breaks the signature
	tampered := *call
	tampered.Exchange = "sushiswap"
	assert.Error(t, VerifyCall(testDomain, &tampered, sig))

	otherDomain := testDomain
	otherDomain.ChainID = 10
	assert.Error(t, VerifyCall(otherDomain, call, sig))

	wrong := *call
	wrong.Caller = common.HexToAddress("0x0000000000000000000000000000000000000001")
	assert.Error(t, VerifyCall(testDomain, &wrong, sig))

	_, err = RecoverCaller(testDomain, call, "0x1234")
	assert.Error(t, err)
}

func BenchmarkSignCall(b *testing.B) {
	s := newTestSigner(b)
	call := testCall(s.Address())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.SignCall(call)
	}
}
