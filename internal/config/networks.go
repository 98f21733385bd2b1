package config

import "sort"

// BaseMainnetChainID is the chain ID deployline targets by default.
const BaseMainnetChainID = 8453

// builtinNetworks are the networks deployline knows out of the box. The RPC
// URLs are public endpoints; production use overrides them with a dedicated
// provider via deployline.toml or DEPLOYLINE_RPC_URL.
var builtinNetworks = map[string]Network{
	"base": {
		Name:               "base",
		ChainID:            BaseMainnetChainID,
		RPCURL:             "https://mainnet.base.org",
		ExplorerAPIURL:     "https://api.etherscan.io/v2/api",
		ExplorerBrowserURL: "https://basescan.org",
	},
	"base-sepolia": {
		Name:               "base-sepolia",
		ChainID:            84532,
		RPCURL:             "https://sepolia.base.org",
		ExplorerAPIURL:     "https://api.etherscan.io/v2/api",
		ExplorerBrowserURL: "https://sepolia.basescan.org",
	},
}

// BuiltinNetwork returns the built-in definition for a network name.
func BuiltinNetwork(name string) (Network, bool) {
	n, ok := builtinNetworks[name]
	return n, ok
}

// NetworkNames returns the known network names, sorted.
func NetworkNames() []string {
	names := make([]string, 0, len(builtinNetworks))
	for name := range builtinNetworks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
