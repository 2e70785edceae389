package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"pinmark/pkg/auth"
	"pinmark/pkg/config"
	"pinmark/pkg/ui"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored site sessions",
	Long: `Store the site's session and CSRF cookies so commands run as a logged-in
user. pinmark never logs in itself: copy the cookies from a browser where you
are logged in.

Sessions are kept in the system keychain when available, otherwise in an
encrypted file, and PINMARK_SESSION_ID/PINMARK_CSRF_TOKEN always work.`,
}

var sessionAddCmd = &cobra.Command{
	Use:     "add <name>",
	Short:   "Store a session under a name",
	Example: `  pinmark session add work`,
	Args:    cobra.ExactArgs(1),
	RunE:    runSessionAdd,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionList,
}

var sessionRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a stored session",
	RunE:  runSessionRemove,
}

var sessionRemoveAll bool

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionAddCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionRemoveCmd)

	sessionRemoveCmd.Flags().BoolVar(&sessionRemoveAll, "all", false, "remove every stored session (name is ignored)")
	sessionRemoveCmd.Args = func(cmd *cobra.Command, args []string) error {
		if sessionRemoveAll {
			return cobra.MaximumNArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	}
}

func newManager() (*auth.Manager, error) {
	dir, err := auth.ConfigDir()
	if err != nil {
		return nil, err
	}
	manager, err := auth.NewManager(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	return manager, nil
}

func runSessionAdd(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	account, err := promptAccount(cmd.InOrStdin(), cmd.OutOrStdout(), strings.TrimSpace(args[0]), cfg)
	if err != nil {
		return err
	}
	if err := manager.Store(account); err != nil {
		return err
	}

	ui.PrintSuccess("Session saved: " + account.Name)
	ui.PrintInfo("Use it with", "pinmark --account "+account.Name+" <command>")
	return nil
}

// promptAccount asks for the cookie values, hiding them when in is a terminal
func promptAccount(in io.Reader, out io.Writer, name string, cfg *config.Config) (*auth.Account, error) {
	if name == "" {
		return nil, fmt.Errorf("session name is required")
	}
	reader := bufio.NewReader(in)

	auth.ShowCookieExtractionGuide(out, cfg.Site.Origin, cfg.Site.SessionCookie, cfg.Site.CSRFCookie)

	fmt.Fprintf(out, "Site origin [%s]: ", cfg.Site.Origin)
	origin, err := readLine(reader)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(out, "%s cookie value: ", cfg.Site.SessionCookie)
	sessionID, err := readSecret(in, reader, out)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "%s cookie value: ", cfg.Site.CSRFCookie)
	csrfToken, err := readSecret(in, reader, out)
	if err != nil {
		return nil, err
	}

	if sessionID == "" || csrfToken == "" {
		return nil, fmt.Errorf("both cookie values are required")
	}
	if strings.ContainsAny(sessionID+csrfToken, "; =") {
		return nil, fmt.Errorf("paste only the cookie value, without its name or a semicolon")
	}

	return &auth.Account{
		Name:      name,
		Origin:    origin,
		SessionID: sessionID,
		CSRFToken: csrfToken,
	}, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads without echo from a terminal, otherwise a plain line
func readSecret(in io.Reader, r *bufio.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}
	return readLine(r)
}

func runSessionList(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}
	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored sessions", "use 'pinmark session add <name>'")
		return nil
	}

	ui.PrintHighlight("Stored sessions")
	for _, account := range accounts {
		masked := auth.SanitizeAccount(account)
		origin := masked.Origin
		if origin == "" {
			origin = "(configured origin)"
		}
		ui.PrintResult(fmt.Sprintf("%-12s %-32s session %s  csrf %s  %s",
			masked.Name, origin, masked.SessionID, masked.CSRFToken,
			masked.LastModified.Format("2006-01-02 15:04")))
	}
	return nil
}

func runSessionRemove(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}
	if sessionRemoveAll {
		if err := manager.DeleteAll(); err != nil {
			return err
		}
		ui.PrintSuccess("All sessions removed")
		return nil
	}
	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Session removed: " + args[0])
	return nil
}
