package asset

import (
	"fmt"
	"slices"
	"sync"
)

// Chain IDs
const (
	ChainIDEthereum = 1
	ChainIDGoerli   = 5
	ChainIDSepolia  = 11155111
)

// Native coins of the supported networks.
var (
	ETH        = NewNative(ChainIDEthereum, "ETH", "Ether", 18)
	GoerliETH  = NewNative(ChainIDGoerli, "ETH", "Goerli Ether", 18)
	SepoliaETH = NewNative(ChainIDSepolia, "ETH", "Sepolia Ether", 18)
)

// Network is a chain a wallet can be connected to.
type Network struct {
	Name    string
	Native  *Asset
	Testnet bool
}

func (n Network) ChainID() uint64 {
	return n.Native.ChainID()
}

var knownNetworks = []Network{
	{Name: "Ethereum Mainnet", Native: ETH},
	{Name: "Goerli", Native: GoerliETH, Testnet: true},
	{Name: "Sepolia", Native: SepoliaETH, Testnet: true},
}

// ChainName returns a display name for chainID.
func ChainName(chainID uint64) string {
	for _, n := range knownNetworks {
		if n.ChainID() == chainID {
			return n.Name
		}
	}
	return fmt.Sprintf("Chain %d", chainID)
}

// Registry indexes networks by chain ID. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	networks map[uint64]Network
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{networks: make(map[uint64]Network)}
}

// DefaultRegistry returns a registry holding Ethereum mainnet, Goerli and Sepolia.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, n := range knownNetworks {
		if err := r.Register(n); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a network. A nil native coin or an already registered chain
// is an error.
func (r *Registry) Register(n Network) error {
	if n.Native == nil {
		return fmt.Errorf("asset: network %q has no native coin", n.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := n.ChainID()
	if _, exists := r.networks[id]; exists {
		return fmt.Errorf("asset: chain %d already registered", id)
	}
	r.networks[id] = n
	return nil
}

func (r *Registry) Network(chainID uint64) (Network, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.networks[chainID]
	return n, ok
}

// GetNative retrieves the native coin of a chain.
func (r *Registry) GetNative(chainID uint64) (*Asset, bool) {
	n, ok := r.Network(chainID)
	if !ok {
		return nil, false
	}
	return n.Native, true
}

// NativeOrDefault returns the registered native coin of chainID, or an
// 18-decimals "ETH" asset for chains the registry does not know.
func (r *Registry) NativeOrDefault(chainID uint64) *Asset {
	if a, ok := r.GetNative(chainID); ok {
		return a
	}
	return NewNative(chainID, "ETH", "Ether", 18)
}

// ChainIDs returns the registered chain IDs in ascending order.
func (r *Registry) ChainIDs() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint64, 0, len(r.networks))
	for id := range r.networks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.networks)
}
