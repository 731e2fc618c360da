package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/tabularium/tabularium/internal/app"
	"github.com/tabularium/tabularium/internal/credentials"
)

// envFunc returns the env that the root command prepared before running a subcommand
type envFunc func() *env

func newStatusCommand(get envFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that the API is reachable and that the stored session is still valid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			result := e.controller.Start(cmd.Context())
			state := e.controller.State()

			e.printf("api:     %s", e.client.BaseURL())
			if result.Reachable {
				e.printf(" (reachable)\n")
			} else {
				e.printf(" (unreachable)\n")
			}
			switch {
			case state.Authenticated && result.Identity != nil:
				e.printf("session: signed in as %s (%s)\n", app.ShortName(result.Identity.Fullname), result.Identity.Username)
			case state.Authenticated:
				e.printf("session: signed in as %s (not verified: %v)\n", app.ShortName(state.DisplayName), result.Err)
			default:
				e.printf("session: signed out\n")
			}
			if e.files != nil {
				theme, err := e.files.Theme()
				if err != nil {
					return err
				}
				e.printf("theme:   %s\n", theme)
			}
			return nil
		},
	}
}

func newLoginCommand(get envFunc) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the issued tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			if password == "" {
				var err error
				if password, err = readSecret(cmd.InOrStdin(), e.out, "password: "); err != nil {
					return err
				}
			}
			if err := e.controller.Login(cmd.Context(), username, password); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			e.printf("signed in as %s\n", app.ShortName(e.controller.State().DisplayName))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password; read from stdin if omitted")
	cmd.MarkFlagRequired("username")
	return cmd
}

func newRegisterCommand(get envFunc) *cobra.Command {
	var username, fullname, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			if password == "" {
				var err error
				if password, err = readSecret(cmd.InOrStdin(), e.out, "password: "); err != nil {
					return err
				}
			}
			if err := e.controller.Register(cmd.Context(), username, fullname, password); err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			e.printf("registered %s: run 'admin login -u %s' to sign in\n", fullname, username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&fullname, "fullname", "n", "", "full name shown in the header")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password; read from stdin if omitted")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("fullname")
	return cmd
}

func newLogoutCommand(get envFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			if err := e.controller.Logout(cmd.Context()); err != nil {
				return err
			}
			e.printf("signed out\n")
			return nil
		},
	}
}

func newWhoamiCommand(get envFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account that the stored access token belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			identity, err := e.client.Me(cmd.Context())
			if err != nil {
				return err
			}
			e.printf("%s (%s)\n", identity.Fullname, identity.Username)
			return nil
		},
	}
}

func newThemeCommand(get envFunc) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark]",
		Short:     "Show or change the stored color scheme",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(credentials.ThemeLight), string(credentials.ThemeDark)},
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			if e.files == nil {
				return errors.New("the theme is only stored by the file credential backend")
			}
			if len(args) == 0 {
				theme, err := e.files.Theme()
				if err != nil {
					return err
				}
				e.printf("%s\n", theme)
				return nil
			}
			theme, err := credentials.ParseTheme(args[0])
			if err != nil {
				return err
			}
			if err := e.files.SetTheme(theme); err != nil {
				return err
			}
			e.printf("theme set to %s\n", theme)
			return nil
		},
	}
}

func newOpenCommand(get envFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open the Tabularium front end in a web browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			e.printf("Opening web browser: %s\n", e.cfg.FrontendURL)
			return browser.OpenURL(e.cfg.FrontendURL)
		},
	}
}

// readSecret prompts for a single line on in
func readSecret(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
