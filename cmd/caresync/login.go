package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/avellora/caresync/internal/auth"
)

func newLoginCmd() *cobra.Command {
	var (
		configPath string
		username   string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to CareSync",
		Long:  "Signs in against the configured identity provider and caches the profile locally.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, configPath, username)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	cmd.Flags().StringVarP(&username, "user", "u", "", "username (prompted when omitted)")
	return cmd
}

func runLogin(cmd *cobra.Command, configPath, username string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.TokenURL == "" {
		return fmt.Errorf("auth.token_url is not configured in %s", configPath)
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	if username == "" {
		fmt.Fprint(out, "Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}

	password, err := readPassword(cmd, reader)
	if err != nil {
		return err
	}

	client, err := auth.NewClient(auth.ClientOpts{
		TokenURL: cfg.Auth.TokenURL,
		ClientID: cfg.Auth.ClientID,
		DB:       gormDB,
	})
	if err != nil {
		return err
	}

	profile, err := client.SignIn(cmd.Context(), username, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Signed in as %s (%s)\n", profile.DisplayName, profile.Role)
	return nil
}

// readPassword prompts with masked input, falling back to plain input when
// stdin is not a terminal (tests, pipes).
func readPassword(cmd *cobra.Command, reader *bufio.Reader) (string, error) {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, "Password: ")

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
