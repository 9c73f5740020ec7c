package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

type Signer struct {
	key             *ecdsa.PrivateKey
	address         common.Address
	domainSeparator common.Hash
}

// NewSigner creates a keeper-call signer with pre-calculated domain separator
func NewSigner(privateKeyHex string, domain Domain) (*Signer, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}

	publicKeyECDSA, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}

	return &Signer{
		key:             key,
		address:         crypto.PubkeyToAddress(*publicKeyECDSA),
		domainSeparator: DomainSeparator(domain),
	}, nil
}

// DomainSeparator computes keccak256(abi.encode(typeHash, keccak256(name), keccak256(version), chainId)).
func DomainSeparator(domain Domain) common.Hash {
	// Manual ABI Encode, all fields are 32 bytes
	data := make([]byte, 32*4)
	copy(data[0:32], EIP712DomainTypeHash.Bytes())
	copy(data[32:64], crypto.Keccak256([]byte(domain.Name)))
	copy(data[64:96], crypto.Keccak256([]byte(domain.Version)))
	copy(data[96:128], math.U256Bytes(big.NewInt(domain.ChainID)))
	return crypto.Keccak256Hash(data)
}

// SignCall signs call and returns a 0x-prefixed 65 byte signature with V in 27/28.
func (s *Signer) SignCall(call *KeeperCall) (string, error) {
	if call.Caller != s.address {
		return "", fmt.Errorf("call caller %s does not match signer %s", call.Caller.Hex(), s.address.Hex())
	}
	hash := Digest(s.domainSeparator, call)

	signature, err := crypto.Sign(hash, s.key)
	if err != nil {
		return "", err
	}
	// crypto.Sign returns V as 0/1
	if signature[64] < 27 {
		signature[64] += 27
	}
	return "0x" + common.Bytes2Hex(signature), nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

// Digest is keccak256("\x19\x01" || domainSeparator || hashStruct(call)).
func Digest(domainSeparator common.Hash, call *KeeperCall) []byte {
	return crypto.Keccak256([]byte{0x19, 0x01}, domainSeparator.Bytes(), hashCall(call))
}

// hashCall calculates hashStruct(call)
func hashCall(call *KeeperCall) []byte {
	data := make([]byte, 32*6)

	copy(data[0:32], KeeperCallTypeHash.Bytes())
	copy(data[32+12:64], call.Caller.Bytes())
	// dynamic strings are encoded as their hash
	copy(data[64:96], crypto.Keccak256([]byte(call.Action)))
	copy(data[96:128], crypto.Keccak256([]byte(call.Exchange)))
	if call.Nonce != nil {
		copy(data[128:160], math.U256Bytes(new(big.Int).Set(call.Nonce)))
	}
	if call.Deadline != nil {
		copy(data[160:192], math.U256Bytes(new(big.Int).Set(call.Deadline)))
	}

	return crypto.Keccak256(data)
}
