package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/wardenhq/warden/internal/cli/prompt"
	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/panel/api"
	"github.com/wardenhq/warden/pkg/panel/store"
)

var (
	initForce          bool
	initNonInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the warden configuration file",
	Long: `Initialize the warden configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/warden/config.yaml.
Use --config to specify a custom path.

The command prompts for the initial admin password and generates a
random JWT signing secret for the API.

Examples:
  # Initialize with default location
  warden init

  # Initialize with custom path
  warden init --config /etc/warden/config.yaml

  # Force overwrite existing config
  warden init --force

  # Skip prompts (admin password is generated on first serve)
  warden init --non-interactive`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVar(&initNonInteractive, "non-interactive", false, "Do not prompt; generate credentials automatically")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	cfg := config.GetDefaultConfig()

	// The API refuses to start without a signing secret, so generate
	// one up front.
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	cfg.API.JWT.Secret = hex.EncodeToString(secret)

	if !initNonInteractive {
		backend, err := prompt.Select("Database backend", []prompt.SelectOption{
			{Label: "SQLite", Value: string(store.DatabaseTypeSQLite), Description: "Single-node, zero setup (default)"},
			{Label: "PostgreSQL", Value: string(store.DatabaseTypePostgres), Description: "External PostgreSQL server"},
		})
		if err != nil {
			return err
		}
		cfg.Database.Type = store.DatabaseType(backend)

		if cfg.Database.Type == store.DatabaseTypePostgres {
			if cfg.Database.Postgres.Host, err = prompt.Input("PostgreSQL host", "localhost"); err != nil {
				return err
			}
			if cfg.Database.Postgres.Port, err = prompt.InputPort("PostgreSQL port", 5432); err != nil {
				return err
			}
			if cfg.Database.Postgres.Database, err = prompt.Input("PostgreSQL database", "warden"); err != nil {
				return err
			}
			if cfg.Database.Postgres.User, err = prompt.Input("PostgreSQL user", "warden"); err != nil {
				return err
			}
			if cfg.Database.Postgres.Password, err = prompt.Password("PostgreSQL password"); err != nil {
				return err
			}
		}

		username, err := prompt.Input("Admin username", "admin")
		if err != nil {
			return err
		}
		cfg.Admin.Username = username

		password, err := prompt.PasswordWithConfirmation("Admin password", "Confirm admin password", 8)
		if err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}
		cfg.Admin.PasswordHash = string(hash)

		email, err := prompt.InputOptional("Admin email")
		if err != nil {
			return err
		}
		cfg.Admin.Email = email
	}

	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the panel with: warden serve")
	fmt.Printf("  3. Or specify custom config: warden serve --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  A random JWT secret has been generated for development use.")
	fmt.Println("  For production, generate a secure secret and use an environment variable:")
	fmt.Println("    # Generates a 64-character hex string (32 bytes of entropy)")
	fmt.Printf("    export %s=$(openssl rand -hex 32)\n", api.EnvJWTSecret)

	return nil
}
