package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// bridgeABI is the subset of the bridge NFT contract the client calls
const bridgeABI = `[
  {
    "type": "function",
    "name": "burnNFT",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "tokenId", "type": "uint256"},
      {"name": "destinationChain", "type": "string"},
      {"name": "destinationAddress", "type": "string"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "getMetadata",
    "stateMutability": "view",
    "inputs": [{"name": "tokenId", "type": "uint256"}],
    "outputs": [
      {
        "name": "",
        "type": "tuple",
        "components": [
          {"name": "name", "type": "string"},
          {"name": "description", "type": "string"},
          {"name": "image", "type": "string"},
          {"name": "price", "type": "uint256"},
          {"name": "forSale", "type": "bool"},
          {"name": "currentOwner", "type": "address"},
          {"name": "createdAt", "type": "uint256"}
        ]
      }
    ]
  },
  {
    "type": "function",
    "name": "ownerOf",
    "stateMutability": "view",
    "inputs": [{"name": "tokenId", "type": "uint256"}],
    "outputs": [{"name": "", "type": "address"}]
  },
  {
    "type": "event",
    "name": "NftBurned",
    "anonymous": false,
    "inputs": [
      {"name": "tokenId", "type": "uint256", "indexed": true},
      {"name": "owner", "type": "address", "indexed": true},
      {"name": "destinationChain", "type": "string", "indexed": false},
      {"name": "destinationAddress", "type": "string", "indexed": false}
    ]
  }
]`

const (
	methodBurn        = "burnNFT"
	methodGetMetadata = "getMetadata"
)

// assetMetadata mirrors the getMetadata tuple
type assetMetadata struct {
	Name         string
	Description  string
	Image        string
	Price        *big.Int
	ForSale      bool
	CurrentOwner common.Address
	CreatedAt    *big.Int
}
