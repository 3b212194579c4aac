package cli

// UserArg is embedded by every command that acts on one user's data
type UserArg struct {
	User string `short:"u" required:"" env:"QUESTBOT_USER" help:"User id (the chat id)."`
}
