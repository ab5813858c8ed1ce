package config

const (
	FlagConfigPath = "config-path"

	DBDialectMysql   = "mysql"
	DBDialectSqlite3 = "sqlite3"

	EnvVarConfigFilePath = "CONFIG_FILE_PATH"
	EnvVarDBUserPass     = "DB_PASSWORD"
	EnvVarSearchAPIKey   = "SEARCH_API_KEY"
)
