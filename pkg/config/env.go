package config

const (
	EnvPrefix = "AIFORGE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "AIFORGE_APP_ENV"
	EnvPort      = "AIFORGE_APP_PORT"
	EnvDBDSN     = "AIFORGE_DB_DSN"
	EnvDBHost    = "AIFORGE_DB_HOST"
	EnvDBUser    = "AIFORGE_DB_USER"
	EnvDBName    = "AIFORGE_DB_NAME"
	EnvRedisURL  = "AIFORGE_REDIS_URL"
	EnvJWTSecret = "AIFORGE_JWT_SECRET"
	EnvJWTIssuer = "AIFORGE_JWT_ISSUER"

	EnvLedgerSeedGrant = "AIFORGE_LEDGER_SEED_GRANT"

	EnvTokenCostBlog   = "AIFORGE_TOKEN_COST_BLOG"
	EnvTokenCostImage  = "AIFORGE_TOKEN_COST_IMAGE"
	EnvTokenCostResume = "AIFORGE_TOKEN_COST_RESUME"
	EnvTokenCostCode   = "AIFORGE_TOKEN_COST_CODE"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

var tokenCostEnvVars = []string{EnvTokenCostBlog, EnvTokenCostImage, EnvTokenCostResume, EnvTokenCostCode}
