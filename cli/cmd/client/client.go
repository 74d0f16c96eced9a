package client

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/sigauth/sigauth/cli/cmd/keygen"
	"github.com/sigauth/sigauth/cli/helpers"
	"github.com/sigauth/sigauth/pkg/config"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const defaultTimeout = 10 * time.Second

// NewClientCommand creates the client command group
func NewClientCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Talk to a running server: register keys and log in",
	}
	cmd.PersistentFlags().String("server", "", "Server base URL (defaults to the configured host and port)")
	cmd.PersistentFlags().Duration("timeout", defaultTimeout, "Per-request timeout")
	cmd.AddCommand(newRegisterCommand(), newLoginCommand(), newKeysCommand())
	return cmd
}

func newRegisterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a user and enroll its public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := apiFromFlags(cmd)
			if err != nil {
				return err
			}
			username, err := usernameFromFlags(cmd)
			if err != nil {
				return err
			}
			keyPath, err := cmd.Flags().GetString("public-key")
			if err != nil {
				return fmt.Errorf("failed to get public-key flag: %w", err)
			}
			publicKey, err := keygen.ReadPublicKey(afero.NewOsFs(), keyPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			user, err := api.RegisterUser(ctx, username)
			if err != nil {
				return fmt.Errorf("register user: %w", err)
			}
			if err := api.RegisterKey(ctx, user.ID, publicKey); err != nil {
				return fmt.Errorf("register key for %s: %w", user.ID, err)
			}
			w := cmd.OutOrStdout()
			helpers.Success(w, "Registered %s", user.Username)
			helpers.Field(w, "user id", user.ID)
			return nil
		},
	}
	cmd.Flags().String("username", "", "Username to register")
	cmd.Flags().String("public-key", keygen.PublicKeyFile, "Path to a public.key file")
	return cmd
}

func newLoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign a challenge with a private key and print the token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := apiFromFlags(cmd)
			if err != nil {
				return err
			}
			username, err := usernameFromFlags(cmd)
			if err != nil {
				return err
			}
			keyPath, err := cmd.Flags().GetString("private-key")
			if err != nil {
				return fmt.Errorf("failed to get private-key flag: %w", err)
			}
			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return fmt.Errorf("failed to get json flag: %w", err)
			}
			key, err := keygen.ReadPrivateKey(afero.NewOsFs(), keyPath)
			if err != nil {
				return err
			}
			pair, err := api.Login(cmd.Context(), username, key)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			w := cmd.OutOrStdout()
			if asJSON {
				return helpers.WriteJSON(w, pair)
			}
			helpers.Success(w, "Authenticated as %s", username)
			helpers.Field(w, "token", pair.Token)
			helpers.Field(w, "refresh token", pair.RefreshToken)
			return nil
		},
	}
	cmd.Flags().String("username", "", "Username to log in as")
	cmd.Flags().String("private-key", keygen.PrivateKeyFile, "Path to a private.key file")
	cmd.Flags().Bool("json", false, "Print the token pair as JSON")
	return cmd
}

func newKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List the active keys of the bearer token's user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := apiFromFlags(cmd)
			if err != nil {
				return err
			}
			token, err := cmd.Flags().GetString("token")
			if err != nil {
				return fmt.Errorf("failed to get token flag: %w", err)
			}
			if token == "" {
				return errors.New("--token is required")
			}
			keys, err := api.ListKeys(cmd.Context(), token)
			if err != nil {
				return fmt.Errorf("list keys: %w", err)
			}
			return helpers.WriteJSON(cmd.OutOrStdout(), keys)
		},
	}
	cmd.Flags().String("token", "", "Bearer token from login")
	return cmd
}

func apiFromFlags(cmd *cobra.Command) (*API, error) {
	server, err := cmd.Flags().GetString("server")
	if err != nil {
		return nil, fmt.Errorf("failed to get server flag: %w", err)
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, fmt.Errorf("failed to get timeout flag: %w", err)
	}
	if server == "" {
		server = ServerURL(config.FromContext(cmd.Context()))
	}
	return NewAPI(server, timeout), nil
}

// ServerURL derives a client base URL from the server's listen settings.
func ServerURL(cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
}

func usernameFromFlags(cmd *cobra.Command) (string, error) {
	username, err := cmd.Flags().GetString("username")
	if err != nil {
		return "", fmt.Errorf("failed to get username flag: %w", err)
	}
	if username != "" {
		return username, nil
	}
	if !helpers.IsTerminal(os.Stdin) {
		return "", errors.New("--username is required")
	}
	return promptUsername()
}

func promptUsername() (string, error) {
	var username string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Username").
			Value(&username).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("username is required")
				}
				return nil
			}),
	))
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("username prompt: %w", err)
	}
	return username, nil
}
