package config

import (
	"encoding/json"
	"fmt"
	"os"
)

type Config struct {
	LogConfig     LogConfig     `json:"log_config"`
	DBConfig      DBConfig      `json:"db_config"`
	WatcherConfig WatcherConfig `json:"watcher_config"`
	ServerConfig  ServerConfig  `json:"server_config"`
	MetricsConfig MetricsConfig `json:"metrics_config"`
}

// WatcherConfig configures the scan/settlement side: which networks are
// watched in this deployment and how to reach their chain infrastructure.
type WatcherConfig struct {
	Networks       []NetworkConfig `json:"networks"`
	SearchAPIKey   string          `json:"search_api_key"`  // bearer token for the transaction search service
	SignerEndpoint string          `json:"signer_endpoint"` // signer service that holds keys and submits signed transactions
}

// NetworkConfig describes one blockchain network: its RPC/search endpoints and
// the bridge contract accounts deployed on it.
type NetworkConfig struct {
	Name               string `json:"name"`
	NodeEndpoint       string `json:"node_endpoint"`
	SearchEndpoint     string `json:"search_endpoint"`
	ChainId            string `json:"chain_id"`
	StartBlock         uint64 `json:"start_block"` // historical block the watermark is bootstrapped at
	TokenContract      string `json:"token_contract"`
	BridgeContract     string `json:"bridge_contract"`
	ReporterAccount    string `json:"reporter_account"`
	ReporterPermission string `json:"reporter_permission"`
	CPUPayer           string `json:"cpu_payer"` // optional, prepends a payforcpu action when set
}

type ServerConfig struct {
	ListenAddr string `json:"listen_addr"`
}

type MetricsConfig struct {
	Enable     bool   `json:"enable"`
	ListenAddr string `json:"listen_addr"`
}

type DBConfig struct {
	Dialect      string `json:"dialect"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	Url          string `json:"url"`
	MaxIdleConns int    `json:"max_idle_conns"`
	MaxOpenConns int    `json:"max_open_conns"`
}

func (cfg *DBConfig) Validate() {
	if cfg.Dialect != DBDialectMysql && cfg.Dialect != DBDialectSqlite3 {
		panic(fmt.Sprintf("only %s and %s supported", DBDialectMysql, DBDialectSqlite3))
	}
	if cfg.Dialect == DBDialectMysql && (cfg.Username == "" || cfg.Url == "") {
		panic("db config is not correct, missing username and/or url")
	}
}

type LogConfig struct {
	Level                        string `json:"level"`
	Filename                     string `json:"filename"`
	MaxFileSizeInMB              int    `json:"max_file_size_in_mb"`
	MaxBackupsOfLogFiles         int    `json:"max_backups_of_log_files"`
	MaxAgeToRetainLogFilesInDays int    `json:"max_age_to_retain_log_files_in_days"`
	UseConsoleLogger             bool   `json:"use_console_logger"`
	UseFileLogger                bool   `json:"use_file_logger"`
	Compress                     bool   `json:"compress"`
}

func (cfg *LogConfig) Validate() {
	if cfg.UseFileLogger {
		if cfg.Filename == "" {
			panic("filename should not be empty if use file logger")
		}
		if cfg.MaxFileSizeInMB <= 0 {
			panic("max_file_size_in_mb should be larger than 0 if use file logger")
		}
		if cfg.MaxBackupsOfLogFiles <= 0 {
			panic("max_backups_of_log_files should be larger than 0 if use file logger")
		}
	}
}

func (cfg *WatcherConfig) Validate() {
	if len(cfg.Networks) == 0 {
		panic("no networks to watch configured")
	}
	if cfg.SignerEndpoint == "" {
		panic("signer_endpoint should not be empty")
	}
	for _, n := range cfg.Networks {
		if n.Name == "" || n.NodeEndpoint == "" || n.SearchEndpoint == "" {
			panic(fmt.Sprintf("network config %q is missing endpoints", n.Name))
		}
		if n.ChainId == "" {
			panic(fmt.Sprintf("network config %q is missing chain_id", n.Name))
		}
		if n.TokenContract == "" || n.BridgeContract == "" || n.ReporterAccount == "" {
			panic(fmt.Sprintf("network config %q is missing contract accounts", n.Name))
		}
	}
}

func (cfg *Config) Validate() {
	cfg.LogConfig.Validate()
	cfg.DBConfig.Validate()
	cfg.WatcherConfig.Validate()
}

func ParseConfigFromJson(content string) *Config {
	var config Config
	if err := json.Unmarshal([]byte(content), &config); err != nil {
		panic(err)
	}
	return &config
}

func ParseConfigFromFile(filePath string) *Config {
	bz, err := os.ReadFile(filePath)
	if err != nil {
		panic(err)
	}

	var config Config
	if err := json.Unmarshal(bz, &config); err != nil {
		panic(err)
	}
	return &config
}
