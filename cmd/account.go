package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dedeception/Nations-Wars-Launcher/internal/account"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage launcher accounts",
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	RunE:  runAccountList,
}

var accountAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Log in and store an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountAdd,
}

var accountImportCmd = &cobra.Command{
	Use:   "import <account.json>",
	Short: "Import an account authenticated elsewhere (e.g. Microsoft login)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountImport,
}

var accountRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Log out and remove an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountRemove,
}

var accountSelectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Select the active account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountSelect,
}

var accountValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the selected account's token",
	RunE:  runAccountValidate,
}

var readPassword = func(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountAddCmd)
	accountCmd.AddCommand(accountImportCmd)
	accountCmd.AddCommand(accountRemoveCmd)
	accountCmd.AddCommand(accountSelectCmd)
	accountCmd.AddCommand(accountValidateCmd)
}

func runAccountList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	accounts := store.ListAccounts()
	if len(accounts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No accounts found.")
		return nil
	}

	var selectedID string
	if selected := store.GetSelectedAccount(); selected != nil {
		selectedID = selected.ID
	}

	fmt.Fprintln(cmd.OutOrStdout(), "UUID\tTYPE\tUSERNAME\tSELECTED\tEXPIRES_AT")
	for _, acct := range accounts {
		expires := "-"
		if !acct.ExpiresAt.IsZero() {
			expires = acct.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%t\t%s\n",
			acct.ID,
			acct.Type,
			acct.Username,
			acct.ID == selectedID,
			expires,
		)
	}
	return nil
}

func runAccountAdd(cmd *cobra.Command, args []string) error {
	_, _, manager, err := loadRuntime()
	if err != nil {
		return err
	}

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	acct, err := manager.AddAccount(cmdContext(cmd), strings.TrimSpace(args[0]), password)
	if err != nil {
		return fmt.Errorf("add account: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Account added successfully.\nUUID: %s\nUsername: %s\n", acct.ID, acct.Username)
	return nil
}

func runAccountImport(cmd *cobra.Command, args []string) error {
	_, _, manager, err := loadRuntime()
	if err != nil {
		return err
	}

	acct, err := readAccountFile(args[0])
	if err != nil {
		return fmt.Errorf("account import: %w", err)
	}

	stored, err := manager.ImportAccount(acct)
	if err != nil {
		return fmt.Errorf("account import: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Account imported successfully.\nUUID: %s\n", stored.ID)
	return nil
}

func runAccountRemove(cmd *cobra.Command, args []string) error {
	ref := strings.TrimSpace(args[0])
	if ref == "" {
		return errors.New("account id is required")
	}

	_, store, manager, err := loadRuntime()
	if err != nil {
		return err
	}
	id := resolveAccountID(store, ref)

	if err := manager.RemoveAccount(cmdContext(cmd), id); err != nil {
		return fmt.Errorf("remove account: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Account removed: %s\n", id)
	return nil
}

func runAccountSelect(cmd *cobra.Command, args []string) error {
	ref := strings.TrimSpace(args[0])
	if ref == "" {
		return errors.New("account id is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	id := resolveAccountID(store, ref)

	if err := store.SelectAccount(id); err != nil {
		return err
	}
	if err := store.Save(); err != nil {
		return fmt.Errorf("persist selection: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Selected account: %s\n", id)
	return nil
}

// resolveAccountID lets users pass a UUID in either dashed or undashed form.
// Unknown references are returned as given so the caller reports not found.
func resolveAccountID(store *account.Store, ref string) string {
	if id, ok := store.ResolveID(ref); ok {
		return id
	}
	return ref
}

func runAccountValidate(cmd *cobra.Command, _ []string) error {
	_, store, manager, err := loadRuntime()
	if err != nil {
		return err
	}

	valid, err := manager.ValidateSelected(cmdContext(cmd))
	if err != nil {
		return fmt.Errorf("validate account: %w", err)
	}

	var id string
	if selected := store.GetSelectedAccount(); selected != nil {
		id = selected.ID
	}
	if !valid {
		fmt.Fprintf(cmd.OutOrStdout(), "Account token is invalid, log in again: %s\n", id)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Account token is valid: %s\n", id)
	return nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// accountFile is the JSON written by the launcher UI after a login that this
// tool cannot perform itself.
type accountFile struct {
	Type         string `json:"type"`
	UUID         string `json:"uuid"`
	Username     string `json:"username"`
	DisplayName  string `json:"displayName"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiryDate   int64  `json:"expiry_date"`
}

func readAccountFile(path string) (*account.Account, error) {
	resolvedPath, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	raw, err := os.ReadFile(resolvedPath)
	if err != nil {
		return nil, fmt.Errorf("read account file: %w", err)
	}

	var file accountFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse account json: %w", err)
	}

	acctType := account.Type(strings.ToLower(strings.TrimSpace(file.Type)))
	if acctType == "" {
		acctType = account.TypeMicrosoft
	}

	acct := &account.Account{
		ID:           strings.TrimSpace(file.UUID),
		AccessToken:  strings.TrimSpace(file.AccessToken),
		RefreshToken: strings.TrimSpace(file.RefreshToken),
		Username:     strings.TrimSpace(file.Username),
		DisplayName:  strings.TrimSpace(file.DisplayName),
		Type:         acctType,
	}
	if acct.DisplayName == "" {
		acct.DisplayName = acct.Username
	}
	if file.ExpiryDate > 0 {
		acct.ExpiresAt = time.UnixMilli(file.ExpiryDate).UTC()
	}
	return acct, nil
}

func resolvePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("empty path")
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}

	return filepath.Abs(path)
}
