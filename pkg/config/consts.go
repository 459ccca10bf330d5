package config

// EnvPrefix is intentionally empty: every field names its variable in full.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "CLOSETRACK_DB_DSN"
	EnvDBHost = "CLOSETRACK_DB_HOST"
	EnvDBUser = "CLOSETRACK_DB_USER"
	EnvDBName = "CLOSETRACK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
