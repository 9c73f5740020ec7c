package signer

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// TypedData builds the eth_signTypedData_v4 payload for call, for wallets that
// sign through JSON-RPC.
func TypedData(domain Domain, call *KeeperCall) apitypes.TypedData {
	nonce := big.NewInt(0)
	if call.Nonce != nil {
		nonce = call.Nonce
	}
	deadline := big.NewInt(0)
	if call.Deadline != nil {
		deadline = call.Deadline
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			primaryType: {
				{Name: "caller", Type: "address"},
				{Name: "action", Type: "string"},
				{Name: "exchange", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:    domain.Name,
			Version: domain.Version,
			ChainId: (*math.HexOrDecimal256)(big.NewInt(domain.ChainID)),
		},
		Message: apitypes.TypedDataMessage{
			"caller":   call.Caller.Hex(),
			"action":   call.Action,
			"exchange": call.Exchange,
			"nonce":    (*math.HexOrDecimal256)(nonce),
			"deadline": (*math.HexOrDecimal256)(deadline),
		},
	}
}

// RecoverCaller returns the address that signed call.
func RecoverCaller(domain Domain, call *KeeperCall, signature string) (common.Address, error) {
	if signature == "" {
		return common.Address{}, fmt.Errorf("signature is required")
	}
	rawSig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature encoding")
	}
	if len(rawSig) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length")
	}
	// Normalize V to 0/1 for recovery.
	if rawSig[64] >= 27 {
		rawSig[64] -= 27
	}
	pub, err := crypto.SigToPub(Digest(DomainSeparator(domain), call), rawSig)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature recovery failed")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyCall checks that call was signed by call.Caller.
func VerifyCall(domain Domain, call *KeeperCall, signature string) error {
	recovered, err := RecoverCaller(domain, call, signature)
	if err != nil {
		return err
	}
	if recovered != call.Caller {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
