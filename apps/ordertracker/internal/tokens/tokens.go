package tokens

import (
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"ordertracker/apps/ordertracker/internal/model"
)

type tokenDef struct {
	symbol   string
	name     string
	address  string
	decimals int
}

var supportedTokens = map[model.ChainID][]tokenDef{
	model.Mainnet: {
		{"WETH", "Wrapped Ether", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", 18},
		{"USDC", "USD Coin", "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", 6},
		{"DAI", "Dai Stablecoin", "0x6B175474E89094C44Da98b954EedeAC495271d0F", 18},
		{"GNO", "Gnosis Token", "0x6810e776880C02933D47DB1b9fc05908e5386b96", 18},
	},
	model.Rinkeby: {
		{"WETH", "Wrapped Ether", "0xc778417E063141139Fce010982780140Aa0cD5Ab", 18},
		{"USDC", "USD Coin", "0x4DBCdF9B62e891a7cec5A2568C3F4FAF9E8Abe2b", 6},
		{"DAI", "Dai Stablecoin", "0xc7AD46e0b8a400Bb3C915120d284AafbA8fc4735", 18},
		{"GNO", "Gnosis Token", "0xd0Dab4E640D95E9E8A47545598c33e31bDb53C7c", 18},
	},
	model.XDai: {
		{"WXDAI", "Wrapped XDAI", "0xe91D153E0b41518A2Ce8Dd3D7944Fa863463a97d", 18},
		{"USDC", "USD Coin on xDai", "0xDDAfbb505ad214D7b80b1f830fcCc89B60fb7A83", 6},
		{"WETH", "Wrapped Ether on xDai", "0x6A023CCd1ff6F2045C3309768eAd9E68F978f6e1", 18},
		{"GNO", "Gnosis Token on xDai", "0x9C58BAcC331c9aa871AFD802DB6379a98e80CEdb", 18},
	},
}

type chainTokens struct {
	bySymbol  map[string]model.Token
	byAddress map[common.Address]model.Token
}

// Registry holds the tokens the service can trade, per chain
type Registry struct {
	chains map[model.ChainID]*chainTokens
}

func NewRegistry() *Registry {
	registry := &Registry{chains: make(map[model.ChainID]*chainTokens)}

	for chainID, defs := range supportedTokens {
		ct := &chainTokens{
			bySymbol:  make(map[string]model.Token, len(defs)),
			byAddress: make(map[common.Address]model.Token, len(defs)),
		}
		for _, def := range defs {
			address := common.HexToAddress(def.address)
			token := model.Token{
				Address:  address.Hex(),
				Symbol:   def.symbol,
				Name:     def.name,
				Decimals: def.decimals,
			}
			ct.bySymbol[strings.ToUpper(def.symbol)] = token
			ct.byAddress[address] = token
		}
		registry.chains[chainID] = ct
	}

	return registry
}

// GetBySymbol looks a token up by symbol, ignoring case
func (r *Registry) GetBySymbol(chainID model.ChainID, symbol string) (model.Token, bool) {
	ct, ok := r.chains[chainID]
	if !ok {
		return model.Token{}, false
	}
	token, ok := ct.bySymbol[strings.ToUpper(symbol)]
	return token, ok
}

func (r *Registry) GetByAddress(chainID model.ChainID, address string) (model.Token, bool) {
	ct, ok := r.chains[chainID]
	if !ok || !common.IsHexAddress(address) {
		return model.Token{}, false
	}
	token, ok := ct.byAddress[common.HexToAddress(address)]
	return token, ok
}

// Resolve accepts either a symbol or a token address
func (r *Registry) Resolve(chainID model.ChainID, symbolOrAddress string) (model.Token, bool) {
	if common.IsHexAddress(symbolOrAddress) {
		return r.GetByAddress(chainID, symbolOrAddress)
	}
	return r.GetBySymbol(chainID, symbolOrAddress)
}

// GetAll returns the chain's tokens sorted by symbol
func (r *Registry) GetAll(chainID model.ChainID) []model.Token {
	ct, ok := r.chains[chainID]
	if !ok {
		return nil
	}
	all := make([]model.Token, 0, len(ct.bySymbol))
	for _, token := range ct.bySymbol {
		all = append(all, token)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Symbol < all[j].Symbol })
	return all
}

// SupportedChains returns the chains with a token list, in ascending order
func (r *Registry) SupportedChains() []model.ChainID {
	chains := make([]model.ChainID, 0, len(r.chains))
	for chainID := range r.chains {
		chains = append(chains, chainID)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}
