package signer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const primaryType = "KeeperCall"

var (
	// "EIP712Domain(string name,string version,uint256 chainId)"
	EIP712DomainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId)"))

	// "KeeperCall(address caller,string action,string exchange,uint256 nonce,uint256 deadline)"
	KeeperCallTypeHash = crypto.Keccak256Hash([]byte("KeeperCall(address caller,string action,string exchange,uint256 nonce,uint256 deadline)"))
)

// Domain binds signatures to one deployment.
type Domain struct {
	Name    string
	Version string
	ChainID int64
}

// KeeperCall is the struct a caller signs to invoke an endpoint. Action is the
// method and route ("POST /v1/strategy/rebalance"); Exchange may be empty for
// calls that do not target a venue.
type KeeperCall struct {
	Caller   common.Address
	Action   string
	Exchange string
	Nonce    *big.Int
	Deadline *big.Int
}
