package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"scanlog-go/internal/app"
	"scanlog-go/internal/config"
	"scanlog-go/internal/scanlog"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	flagHost   string
	flagDevice string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a ScanlogApp. The caller must defer a.Close().
// operation names the CLI command being run (e.g. "crawl", "snapshot-push").
func newApp(operation string, args []string, create bool) (*app.ScanlogApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	host := flagHost
	if host == "" && cfg.Host == "" {
		host = defaults.Host
	}

	a, err := app.NewScanlogApp(cfg, app.Options{
		Host:      host,
		DeviceID:  flagDevice,
		Operation: operation,
		Args:      strings.Join(args, " "),
		Create:    create,
		Console:   os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readPassphrase prompts on the terminal, or reads one line from stdin when
// it is not a terminal.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "scanlog",
	Short:        "Crawl state store for backup scans",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		host := defaults.Host
		if flagHost != "" {
			host = flagHost
		}
		cfg := config.NewConfig(host, defaults.CacheDir)
		cfg.DeviceID = flagDevice

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Host:      %s\n", cfg.Host)
		fmt.Printf("Cache Dir: %s\n", cfg.CacheDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Host:       %s\n", cfg.Host)
		fmt.Printf("Device ID:  %s\n", cfg.DeviceID)
		fmt.Printf("Cache Dir:  %s\n", cfg.CacheDir)
		fmt.Printf("Store Name: %s\n", cfg.StoreName)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Log Level:  %s\n", cfg.LogLevel)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:      %s (%s)\n", v.Name, v.Type)
		}
		return nil
	},
}

var configVaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage vaults",
}

var configVaultCheckCmd = &cobra.Command{
	Use:   "check [NAME]",
	Short: "Verify a vault is reachable and writable",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("vault-check", args, false)
		if err != nil {
			return err
		}
		defer a.Close()

		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		checked, err := a.ValidateVault(cmd.Context(), name)
		if err != nil {
			return err
		}
		fmt.Printf("Vault %s OK\n", checked)
		return nil
	},
}

// init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the store for this host and device",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("init", args, true)
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.Init(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Store: %s\n", path)
		return nil
	},
}

var addFolderCmd = &cobra.Command{
	Use:   "add-folder PATH",
	Short: "Queue a folder for crawling",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("add-folder", args, true)
		if err != nil {
			return err
		}
		defer a.Close()

		folder, err := a.AddFolder(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("adding folder: %w", err)
		}
		fmt.Printf("Added folder: %s\n", folder)
		return nil
	},
}

var addFileCmd = &cobra.Command{
	Use:   "add-file PATH",
	Short: "Record a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("add-file", args, true)
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.AddFile(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("adding file: %w", err)
		}
		fmt.Printf("Added file: %s\n", path)
		return nil
	},
}

// crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl [ROOT]",
	Short: "Crawl pending folders",
	Long: `Crawl drains the pending-folder queue. When ROOT is given it is queued
first. An interrupted crawl resumes where it stopped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rescan, _ := cmd.Flags().GetBool("rescan")
		maxFolders, _ := cmd.Flags().GetInt("max-folders")

		a, err := newApp("crawl", args, true)
		if err != nil {
			return err
		}
		defer a.Close()

		opts := app.CrawlOptions{Rescan: rescan, MaxFolders: maxFolders}
		if len(args) > 0 {
			opts.Root = args[0]
		}

		stats, err := a.Crawl(cmd.Context(), opts)
		if stats != nil {
			fmt.Printf("Run %s: %d folder(s), %d new file(s), %d changed, %d error(s), %d bytes in %s\n",
				stats.RunID, stats.Folders, stats.Files, stats.Dirty, stats.Errors, stats.Bytes,
				stats.Finished.Sub(stats.Started).Round(time.Millisecond))
		}
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("crawl interrupted; run again to resume")
		}
		return err
	},
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next pending folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("next", args, false)
		if err != nil {
			return err
		}
		defer a.Close()

		folder, ok, err := a.NextFolder(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("No pending folders.")
			return nil
		}
		fmt.Println(folder)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show record counts, or files with a given status",
	RunE: func(cmd *cobra.Command, args []string) error {
		statusName, _ := cmd.Flags().GetString("status")

		a, err := newApp("status", args, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if statusName == "" {
			counts, err := a.StatusCounts(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range []scanlog.Status{scanlog.StatusDefault, scanlog.StatusScanned, scanlog.StatusDirty, scanlog.StatusError} {
				fmt.Printf("%-8s %d\n", s.String(), counts[s])
			}
			return nil
		}

		status, err := scanlog.ParseStatus(statusName)
		if err != nil {
			return err
		}
		records, err := a.FilesByStatus(cmd.Context(), status)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No files found.")
			return nil
		}
		for _, r := range records {
			fmt.Printf("%12d  %s\n", r.Size, r.Path())
		}
		return nil
	},
}

var sizeCmd = &cobra.Command{
	Use:   "size FOLDER",
	Short: "Show the recorded size of a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("size", args, false)
		if err != nil {
			return err
		}
		defer a.Close()

		size, found, err := a.FolderSize(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("folder not recorded: %s", args[0])
		}
		fmt.Println(size)
		return nil
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List device ids recorded per host",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("devices", args, false)
		if err != nil {
			return err
		}
		defer a.Close()

		devices, err := a.Devices(cmd.Context())
		if err != nil {
			return err
		}
		hosts := make([]string, 0, len(devices))
		for h := range devices {
			hosts = append(hosts, h)
		}
		sort.Strings(hosts)
		for _, h := range hosts {
			fmt.Printf("%s\t%s\n", h, strings.Join(devices[h], ","))
		}
		return nil
	},
}

var markCmd = &cobra.Command{
	Use:   "mark FOLDER STATUS",
	Short: "Set the status of a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := scanlog.ParseStatus(args[1])
		if err != nil {
			return err
		}

		a, err := newApp("mark", args, false)
		if err != nil {
			return err
		}
		defer a.Close()

		ok, err := a.MarkFolder(cmd.Context(), args[0], status)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("folder not recorded: %s", args[0])
		}
		fmt.Printf("%s -> %s\n", args[0], status)
		return nil
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Publish or restore store snapshots",
}

var snapshotPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Publish an encrypted snapshot of the store to a vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		vaultName, _ := cmd.Flags().GetString("vault")

		a, err := newApp("snapshot-push", args, false)
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.PushSnapshot(cmd.Context(), vaultName)
		if err != nil {
			return err
		}
		fmt.Printf("Pushed %s to %s (%d bytes, version %d)\n", info.Name, info.Vault, info.Size, info.Version)
		return nil
	},
}

var snapshotPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Restore the store from a vault snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		vaultName, _ := cmd.Flags().GetString("vault")

		a, err := newApp("snapshot-pull", args, false)
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		path, err := a.PullSnapshot(cmd.Context(), vaultName, passphrase)
		if err != nil {
			return err
		}
		fmt.Printf("Restored %s\n", path)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage snapshot encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a passphrase-protected key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("keys-init", args, false)
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		if term.IsTerminal(int(os.Stdin.Fd())) {
			confirm, err := readPassphrase("Repeat passphrase: ")
			if err != nil {
				return err
			}
			if confirm != passphrase {
				return errors.New("passphrases do not match")
			}
		}

		if err := a.SetupKeys(passphrase); err != nil {
			return err
		}
		fmt.Println("Encryption keys created.")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "", "Host partition (default from config, then hostname)")
	rootCmd.PersistentFlags().StringVar(&flagDevice, "device", "", "Device id partition (default from config)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configVaultCmd)
	configVaultCmd.AddCommand(configVaultCheckCmd)

	// snapshot subcommands
	snapshotCmd.AddCommand(snapshotPushCmd)
	snapshotCmd.AddCommand(snapshotPullCmd)
	snapshotPushCmd.Flags().String("vault", "", "Vault name (default: first configured vault)")
	snapshotPullCmd.Flags().String("vault", "", "Vault name (default: first configured vault)")

	keysCmd.AddCommand(keysInitCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addFolderCmd)
	rootCmd.AddCommand(addFileCmd)
	rootCmd.AddCommand(crawlCmd)
	crawlCmd.Flags().Bool("rescan", false, "Requeue every folder before crawling")
	crawlCmd.Flags().IntP("max-folders", "n", 0, "Stop after this many folders (0 = no limit)")
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringP("status", "s", "", "List files with this status (DEFAULT, SCANNED, DIRTY, ERROR)")
	rootCmd.AddCommand(sizeCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(markCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(keysCmd)
}
