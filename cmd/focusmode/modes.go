package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/focusmode/internal/config"
	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
	"github.com/eliteGoblin/focusd/focusmode/internal/infra"
	"github.com/eliteGoblin/focusd/focusmode/internal/policy"
)

// showLimit is how many allow-list entries show prints before truncating.
const showLimit = 10

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available modes",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <mode>",
	Short: "Show a mode's allowed apps and blocked sites",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the data directory and built-in modes",
	Long: `Creates the data directory, writes the built-in modes (productivity,
creativity, social) and a default config file. Existing files are kept.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Manage custom modes",
}

var modeCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create or replace a custom mode",
	Long: `Creates a custom mode from a list of allowed apps and sites to block.
Common subdomains (www, m, api, cdn, ...) of each blocked site are blocked too.`,
	Example: `  focusmode mode create writing --apps "Pages,Terminal" --block-sites "youtube.com,reddit.com"`,
	Args:    cobra.ExactArgs(1),
	RunE:    runModeCreate,
}

var modeDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a custom mode",
	Args:  cobra.ExactArgs(1),
	RunE:  runModeDelete,
}

var (
	createApps  []string
	createSites []string
)

func init() {
	modeCreateCmd.Flags().StringSliceVar(&createApps, "apps", nil, "Allowed app names (comma separated)")
	modeCreateCmd.Flags().StringSliceVar(&createSites, "block-sites", nil, "Sites to block (comma separated)")
	_ = modeCreateCmd.MarkFlagRequired("apps")

	modeCmd.AddCommand(modeCreateCmd)
	modeCmd.AddCommand(modeDeleteCmd)

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(modeCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if _, err := a.seedModes(); err != nil {
		return err
	}
	names, err := a.modes().List()
	if err != nil {
		return err
	}
	active := infra.NewFileStateStore(a.paths.StatePath()).Current()

	fmt.Println("\n=== Available Modes ===")
	if len(names) == 0 {
		fmt.Println("No modes found. Run 'focusmode init' to create the built-in modes.")
	}
	for _, name := range names {
		marker := " "
		if name == active {
			marker = "*"
		}
		fmt.Printf(" %s %s\n", marker, name)
	}
	fmt.Println("=======================")
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	modes := a.modes()
	name := policy.NormalizeModeName(args[0])

	apps, err := modes.AllowList(name)
	if err != nil {
		return fmt.Errorf("%w: %q", err, args[0])
	}
	table, err := modes.BlockTable(name)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Mode: %s ===\n", name)
	fmt.Printf("Allowed apps (%d):\n", len(apps))
	fmt.Print(formatAllowList(apps, showLimit))
	fmt.Printf("Blocked hosts: %d\n", table.Len())
	return nil
}

// formatAllowList prints up to limit entries then a "... and N more" line.
func formatAllowList(apps []string, limit int) string {
	var b strings.Builder
	for i, app := range apps {
		if i == limit {
			fmt.Fprintf(&b, "  ... and %d more\n", len(apps)-limit)
			break
		}
		fmt.Fprintf(&b, "  - %s\n", app)
	}
	return b.String()
}

func runInit(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	written, err := a.seedModes()
	if err != nil {
		return err
	}
	if _, err := os.Stat(a.configPath); os.IsNotExist(err) {
		if err := config.Save(a.configPath, a.cfg); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", a.configPath)
	}

	fmt.Printf("Data directory: %s (%s)\n", a.paths.DataDir, a.paths.Mode)
	if len(written) == 0 {
		fmt.Println("Built-in modes already present.")
	} else {
		fmt.Printf("Created modes: %s\n", strings.Join(written, ", "))
	}
	return nil
}

func runModeCreate(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	name := policy.NormalizeModeName(args[0])
	if err := policy.ValidateModeName(name); err != nil {
		return err
	}
	if err := a.paths.EnsureDirs(); err != nil {
		return err
	}

	def := domain.ModeDefinition{
		Name:       name,
		AllowList:  createApps,
		BlockTable: policy.ExpandBlockedSites(createSites),
		Custom:     true,
	}
	if err := a.modes().Save(def); err != nil {
		return err
	}

	fmt.Printf("Created custom mode %q: %d allowed apps, %d blocked hosts\n",
		name, len(createApps), def.BlockTable.Len())
	return nil
}

func runModeDelete(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	name := policy.NormalizeModeName(args[0])
	if err := a.modes().Delete(name); err != nil {
		return fmt.Errorf("%w (only custom modes can be deleted)", err)
	}
	fmt.Printf("Deleted custom mode %q\n", name)
	return nil
}
