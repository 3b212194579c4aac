package system

import (
	"errors"
	"fmt"

	"github.com/julianstephens/questbot/internal/cli"
	"github.com/julianstephens/questbot/internal/keyring"
	"github.com/julianstephens/questbot/internal/storage/postgres"
)

// KeyringSetCmd stores a secret in the OS keyring
type KeyringSetCmd struct {
	Secret string `arg:"" help:"Secret name: database-connection, bot-token, webhook-secret or trigger-token."`
	Value  string `arg:"" help:"Secret value."`
}

func (cmd *KeyringSetCmd) Run(ctx *cli.Context) error {
	secret, err := keyring.ParseSecret(cmd.Secret)
	if err != nil {
		return err
	}

	if secret == keyring.DBConnection {
		if _, err := postgres.ValidateConnString(cmd.Value); err != nil {
			if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return fmt.Errorf("invalid connection string: %w", err)
			}
			// the keyring is the one place a password may live
			ctx.Println("⚠️  Connection string contains a password. It will be stored in the encrypted OS keyring.")
		}
	}

	if err := keyring.Set(secret, cmd.Value); err != nil {
		return err
	}
	ctx.Printf("✓ %s stored in OS keyring\n", secret)
	if secret == keyring.DBConnection {
		ctx.Println("  Use --store postgres to connect with it")
	}
	return nil
}

// KeyringGetCmd reports whether a secret is stored, masking its value
type KeyringGetCmd struct {
	Secret string `arg:"" help:"Secret name."`
}

func (cmd *KeyringGetCmd) Run(ctx *cli.Context) error {
	secret, err := keyring.ParseSecret(cmd.Secret)
	if err != nil {
		return err
	}
	value, err := keyring.Get(secret)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("no %s found in keyring. Use 'questbot keyring set' to store one", secret)
		}
		return err
	}

	if secret == keyring.DBConnection {
		ctx.Println(maskPassword(value))
	} else {
		ctx.Printf("%s is set (%d characters)\n", secret, len(value))
	}
	return nil
}

type KeyringDeleteCmd struct {
	Secret string `arg:"" help:"Secret name."`
}

func (cmd *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	secret, err := keyring.ParseSecret(cmd.Secret)
	if err != nil {
		return err
	}
	if err := keyring.Delete(secret); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("no %s found in keyring", secret)
		}
		return err
	}
	ctx.Printf("✓ %s deleted from OS keyring\n", secret)
	return nil
}

// KeyringStatusCmd checks the keyring and lists which secrets are stored
type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		ctx.Println("❌ OS keyring is not available on this system")
		return errors.New("keyring unavailable")
	}
	ctx.Println("✓ OS keyring is available")
	for _, name := range keyring.Names() {
		if keyring.Lookup(keyring.Secret(name)) != "" {
			ctx.Printf("  ✓ %s\n", name)
		} else {
			ctx.Printf("  ℹ %s not set\n", name)
		}
	}
	return nil
}
