package chain

import (
	"fmt"

	"github.com/zos-network/bridge-watcher/config"
)

// Network identifies one of the fixed set of blockchain networks the bridge
// spans. The set is closed; unknown names are rejected at the config boundary.
type Network string

const (
	Mainnet Network = "mainnet"
	Wax     Network = "wax"
	Kylin   Network = "kylin"
	Jungle  Network = "jungle"
)

// ParseNetwork resolves a network name, including user-facing aliases found in
// event payloads ("eos" is the mainnet).
func ParseNetwork(name string) (Network, error) {
	switch name {
	case "eos", string(Mainnet):
		return Mainnet, nil
	case string(Wax):
		return Wax, nil
	case string(Kylin):
		return Kylin, nil
	case string(Jungle):
		return Jungle, nil
	}
	return "", fmt.Errorf("unknown network %q", name)
}

// Contracts are the bridge accounts deployed on one network.
type Contracts struct {
	Token              string // token contract whose transfer actions are watched
	Bridge             string // bridge contract, receiver of inbound transfers
	Reporter           string // authority the settlement transactions are signed for
	ReporterPermission string
	CPUPayer           string // optional resource payer, prepended to every submission
}

// Registry owns the per-network configuration and gateway clients. It is
// constructed once at startup and passed by reference to every component;
// there are no ambient per-network singletons.
type Registry struct {
	configs  map[Network]*config.NetworkConfig
	gateways map[Network]Gateway
	watched  []Network
}

func NewRegistry(cfg *config.WatcherConfig) (*Registry, error) {
	r := &Registry{
		configs:  make(map[Network]*config.NetworkConfig),
		gateways: make(map[Network]Gateway),
	}
	for i := range cfg.Networks {
		nc := &cfg.Networks[i]
		network, err := ParseNetwork(nc.Name)
		if err != nil {
			return nil, err
		}
		if _, ok := r.configs[network]; ok {
			return nil, fmt.Errorf("network %q configured twice", network)
		}
		r.configs[network] = nc
		r.gateways[network] = NewHTTPGateway(network, nc, cfg.SearchAPIKey, cfg.SignerEndpoint)
		r.watched = append(r.watched, network)
	}
	return r, nil
}

// Watched lists the networks actively scanned in this deployment, in config
// order.
func (r *Registry) Watched() []Network {
	return r.watched
}

func (r *Registry) Gateway(network Network) (Gateway, error) {
	gw, ok := r.gateways[network]
	if !ok {
		return nil, fmt.Errorf("network %q is not configured", network)
	}
	return gw, nil
}

func (r *Registry) Contracts(network Network) (Contracts, error) {
	nc, ok := r.configs[network]
	if !ok {
		return Contracts{}, fmt.Errorf("network %q is not configured", network)
	}
	permission := nc.ReporterPermission
	if permission == "" {
		permission = "report"
	}
	return Contracts{
		Token:              nc.TokenContract,
		Bridge:             nc.BridgeContract,
		Reporter:           nc.ReporterAccount,
		ReporterPermission: permission,
		CPUPayer:           nc.CPUPayer,
	}, nil
}

func (r *Registry) StartBlock(network Network) (uint64, error) {
	nc, ok := r.configs[network]
	if !ok {
		return 0, fmt.Errorf("network %q is not configured", network)
	}
	return nc.StartBlock, nil
}
