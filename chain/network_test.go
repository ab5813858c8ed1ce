package chain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zos-network/bridge-watcher/config"
)

func TestParseNetwork(t *testing.T) {
	for name, want := range map[string]Network{
		"mainnet": Mainnet,
		"eos":     Mainnet, // user-facing alias
		"wax":     Wax,
		"kylin":   Kylin,
		"jungle":  Jungle,
	} {
		got, err := ParseNetwork(name)
		require.NoError(t, err, name)
		require.Equal(t, want, got)
	}

	_, err := ParseNetwork("dogechain")
	require.Error(t, err)
}

func testWatcherConfig() *config.WatcherConfig {
	return &config.WatcherConfig{
		Networks: []config.NetworkConfig{
			{
				Name:            "mainnet",
				NodeEndpoint:    "http://localhost:8888",
				SearchEndpoint:  "http://localhost:9999",
				ChainId:         "aca376f206b8fc25a6ed44dbdc66547c",
				StartBlock:      98817667,
				TokenContract:   "zostoken1111",
				BridgeContract:  "zosbridge111",
				ReporterAccount: "zosreporter1",
				CPUPayer:        "zoscpupayer1",
			},
			{
				Name:               "wax",
				NodeEndpoint:       "http://localhost:8889",
				SearchEndpoint:     "http://localhost:9998",
				ChainId:            "1064487b3cd1a897ce03ae5b6a865651",
				StartBlock:         33756246,
				TokenContract:      "waxtoken1111",
				BridgeContract:     "waxbridge111",
				ReporterAccount:    "waxreporter1",
				ReporterPermission: "reportperm",
			},
		},
		SignerEndpoint: "http://localhost:7777",
	}
}

func TestNewRegistry(t *testing.T) {
	registry, err := NewRegistry(testWatcherConfig())
	require.NoError(t, err)
	require.Equal(t, []Network{Mainnet, Wax}, registry.Watched())

	contracts, err := registry.Contracts(Mainnet)
	require.NoError(t, err)
	require.Equal(t, "zostoken1111", contracts.Token)
	require.Equal(t, "zosbridge111", contracts.Bridge)
	require.Equal(t, "zoscpupayer1", contracts.CPUPayer)
	// default permission when the config leaves it out
	require.Equal(t, "report", contracts.ReporterPermission)

	contracts, err = registry.Contracts(Wax)
	require.NoError(t, err)
	require.Equal(t, "reportperm", contracts.ReporterPermission)
	require.Empty(t, contracts.CPUPayer)

	start, err := registry.StartBlock(Mainnet)
	require.NoError(t, err)
	require.Equal(t, uint64(98817667), start)

	gw, err := registry.Gateway(Wax)
	require.NoError(t, err)
	require.NotNil(t, gw)

	// networks outside the deployment are rejected, not lazily constructed
	_, err = registry.Gateway(Kylin)
	require.Error(t, err)
	_, err = registry.Contracts(Jungle)
	require.Error(t, err)
}

func TestNewRegistryRejectsUnknownAndDuplicate(t *testing.T) {
	cfg := testWatcherConfig()
	cfg.Networks[1].Name = "dogechain"
	_, err := NewRegistry(cfg)
	require.Error(t, err)

	cfg = testWatcherConfig()
	cfg.Networks[1] = cfg.Networks[0]
	_, err = NewRegistry(cfg)
	require.Error(t, err)
}
