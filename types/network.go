package types

import "github.com/gagliardetto/solana-go/rpc"

// Cluster represents a Solana cluster the service can build transactions for
type Cluster string

const (
	ClusterMainnet  Cluster = "mainnet-beta"
	ClusterDevnet   Cluster = "devnet"
	ClusterTestnet  Cluster = "testnet"
	ClusterLocalnet Cluster = "localnet"
)

// BlockchainID returns the CAIP-2 chain id sent in the X-Blockchain-Ids header.
func (c Cluster) BlockchainID() string {
	switch c {
	case ClusterMainnet:
		return "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"
	case ClusterDevnet:
		return "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1"
	case ClusterTestnet:
		return "solana:4uhcVJyU9pJkvQyS88uRDiswHXSCkY3z"
	default:
		return "solana:localnet"
	}
}

// DefaultRPCURL is used when chain.rpcURL is not configured
func (c Cluster) DefaultRPCURL() string {
	switch c {
	case ClusterMainnet:
		return rpc.MainNetBeta_RPC
	case ClusterDevnet:
		return rpc.DevNet_RPC
	case ClusterTestnet:
		return rpc.TestNet_RPC
	default:
		return rpc.LocalNet_RPC
	}
}

func (c Cluster) IsValid() bool {
	return c == ClusterMainnet || c == ClusterDevnet || c == ClusterTestnet || c == ClusterLocalnet
}

func (c Cluster) String() string {
	return string(c)
}
