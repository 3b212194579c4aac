package constants

// Environment variable names. Values from the environment override the config file.
const (
	EnvConfigFile   = "QUESTBOT_CONFIG"
	EnvStore        = "QUESTBOT_STORE"
	EnvDBConnection = "QUESTBOT_DB_CONNECTION"
	EnvTimezone     = "QUESTBOT_TIMEZONE"
	EnvReminderText = "QUESTBOT_REMINDER_TEXT"
	EnvSendTimeout  = "QUESTBOT_SEND_TIMEOUT"
	EnvBotToken     = "BOT_TOKEN"
	EnvWebhookURL   = "QUESTBOT_WEBHOOK_URL"
	EnvWebhookKey   = "QUESTBOT_WEBHOOK_SECRET"
	EnvHTTPAddr     = "QUESTBOT_HTTP_ADDR"
	EnvTriggerToken = "QUESTBOT_TRIGGER_TOKEN"
	EnvDebug        = "QUESTBOT_DEBUG"
	EnvNotifier     = "QUESTBOT_NOTIFIER"
	EnvRelayDir     = "QUESTBOT_RELAY_DIR"
)
