package types

import (
	"fmt"
	"math/big"
)

// Network represents supported blockchain networks
type Network string

const (
	NetworkPolygon     Network = "polygon"
	NetworkPolygonAmoy Network = "polygon-amoy" // testnet
	NetworkBaseSepolia Network = "base-sepolia" // testnet
	NetworkBase        Network = "base"
)

// USDCDecimals is the precision of every USDC deployment listed in networks.
const USDCDecimals = 6

// AssetInfo describes the default stablecoin accepted on a network.
type AssetInfo struct {
	Address  string
	Decimals int32
	// EIP-712 domain of the token contract.
	Name    string
	Version string
}

type networkInfo struct {
	chainID int64
	testnet bool
	usdc    AssetInfo
}

var networks = map[Network]networkInfo{
	NetworkBase: {
		chainID: 8453,
		usdc:    AssetInfo{Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: USDCDecimals, Name: "USD Coin", Version: "2"},
	},
	NetworkBaseSepolia: {
		chainID: 84532,
		testnet: true,
		usdc:    AssetInfo{Address: "0x036CbD53842c5426634e7929541eC2318f3dCF7e", Decimals: USDCDecimals, Name: "USDC", Version: "2"},
	},
	NetworkPolygon: {
		chainID: 137,
		usdc:    AssetInfo{Address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", Decimals: USDCDecimals, Name: "USD Coin", Version: "2"},
	},
	NetworkPolygonAmoy: {
		chainID: 80002,
		testnet: true,
		usdc:    AssetInfo{Address: "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582", Decimals: USDCDecimals, Name: "USDC", Version: "2"},
	},
}

// SupportedNetworks lists every network the library can sign and price for.
func SupportedNetworks() []Network {
	return []Network{NetworkBase, NetworkBaseSepolia, NetworkPolygon, NetworkPolygonAmoy}
}

// ChainID returns the EIP-155 chain id of the network.
func (n Network) ChainID() (*big.Int, error) {
	info, ok := networks[n]
	if !ok {
		return nil, &X402Error{
			Code:    ErrUnsupportedNetwork,
			Message: fmt.Sprintf("unsupported network: %s", n),
		}
	}
	return big.NewInt(info.chainID), nil
}

// USDC returns the USDC deployment used for priced requirements on the network.
func (n Network) USDC() (AssetInfo, error) {
	info, ok := networks[n]
	if !ok {
		return AssetInfo{}, &X402Error{
			Code:    ErrUnsupportedNetwork,
			Message: fmt.Sprintf("unsupported network: %s", n),
		}
	}
	return info.usdc, nil
}

// Helper functions for network classification
func (n Network) IsEVM() bool {
	_, ok := networks[n]
	return ok
}

func (n Network) IsTestnet() bool {
	return networks[n].testnet
}

func (n Network) String() string {
	return string(n)
}
