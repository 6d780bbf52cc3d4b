package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
	"github.com/eliteGoblin/focusd/focusmode/internal/infra"
)

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Manage the saved administrator password",
	Long: `The saved password lets the supervisor edit the hosts file without a
prompt. It is kept in an encrypted database inside the data directory.`,
}

var passwordSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Verify and save the administrator password (read from stdin)",
	Args:  cobra.NoArgs,
	RunE:  runPasswordSet,
}

var passwordStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a password is saved",
	Args:  cobra.NoArgs,
	RunE:  runPasswordStatus,
}

var passwordClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the saved password",
	Args:  cobra.NoArgs,
	RunE:  runPasswordClear,
}

var passwordVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the saved password still works",
	Args:  cobra.NoArgs,
	RunE:  runPasswordVerify,
}

func init() {
	passwordCmd.AddCommand(passwordSetCmd)
	passwordCmd.AddCommand(passwordStatusCmd)
	passwordCmd.AddCommand(passwordClearCmd)
	passwordCmd.AddCommand(passwordVerifyCmd)
	rootCmd.AddCommand(passwordCmd)
}

func openVault() (*app, *infra.EncryptedVault, error) {
	a, err := loadApp()
	if err != nil {
		return nil, nil, err
	}
	vault, err := infra.OpenVault(a.paths.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open vault: %w", err)
	}
	return a, vault, nil
}

func runPasswordSet(cmd *cobra.Command, args []string) error {
	a, vault, err := openVault()
	if err != nil {
		return err
	}
	defer vault.Close()

	fmt.Fprint(os.Stderr, "Administrator password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("empty password")
	}

	runner := infra.NewSudoRunner(nil, a.cfg.Network.PrivilegeTimeout, cliLogger())
	if !runner.VerifyPassword(cmd.Context(), password) {
		return fmt.Errorf("%w: password rejected by sudo", domain.ErrInsufficientPrivilege)
	}
	if err := vault.SetSecret(infra.SudoPasswordKey, password); err != nil {
		return err
	}
	fmt.Println("Password verified and saved.")
	return nil
}

func runPasswordStatus(cmd *cobra.Command, args []string) error {
	_, vault, err := openVault()
	if err != nil {
		return err
	}
	defer vault.Close()

	setAt, err := vault.SecretSetAt(infra.SudoPasswordKey)
	if errors.Is(err, domain.ErrSecretNotFound) {
		fmt.Println("No password saved. Website blocking needs sudo rights at activation.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Password saved on %s\n", setAt.Format("2006-01-02 15:04"))
	fmt.Printf("Vault: %s\n", vault.Path())
	return nil
}

func runPasswordClear(cmd *cobra.Command, args []string) error {
	_, vault, err := openVault()
	if err != nil {
		return err
	}
	defer vault.Close()

	if err := vault.DeleteSecret(infra.SudoPasswordKey); err != nil {
		return err
	}
	fmt.Println("Saved password removed.")
	return nil
}

func runPasswordVerify(cmd *cobra.Command, args []string) error {
	a, vault, err := openVault()
	if err != nil {
		return err
	}
	defer vault.Close()

	password, err := vault.GetSecret(infra.SudoPasswordKey)
	if errors.Is(err, domain.ErrSecretNotFound) {
		fmt.Println("No password saved.")
		return nil
	}
	if err != nil {
		return err
	}

	runner := infra.NewSudoRunner(nil, a.cfg.Network.PrivilegeTimeout, cliLogger())
	if runner.VerifyPassword(cmd.Context(), password) {
		fmt.Println("Saved password is valid.")
		return nil
	}
	fmt.Println("Saved password is no longer accepted. Run 'focusmode password set'.")
	return nil
}
