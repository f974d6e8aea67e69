package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"vertebrae-go/internal/app"
	"vertebrae-go/internal/config"
	"vertebrae-go/internal/encryption"
	"vertebrae-go/internal/vertebrae"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readConfig loads the config file from its default (or overridden) location.
func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return cfg, nil
}

// newApp reads the config and creates a MirrorApp. The caller must defer
// app.Close().
func newApp(ctx context.Context) (*app.MirrorApp, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewMirrorApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// promptPassphrase reads a passphrase from the terminal without echo.
func promptPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

var rootCmd = &cobra.Command{
	Use:   "vertebrae",
	Short: "Directory mirroring daemon",
}

// run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the mirror daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Run(ctx)
	},
}

// rescan command
var rescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Reconcile watched directories with the mirror once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RescanOnce(); err != nil {
			return fmt.Errorf("rescan failed: %w", err)
		}

		fmt.Println("Rescan complete.")
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show drift between watched directories and the mirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		statuses, err := a.Status()
		if err != nil {
			return err
		}

		drift := 0
		for _, s := range statuses {
			if s.State == vertebrae.DriftInSync {
				continue
			}
			drift++
			fmt.Printf("%-10s  %s\n", s.State, s.Path)
		}

		if drift == 0 {
			fmt.Printf("In sync (%d tracked file(s)).\n", len(statuses))
		} else {
			fmt.Printf("\n%d file(s) out of sync.\n", drift)
		}
		return nil
	},
}

// journal command
var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show the tracked files in the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		entries := a.JournalEntries()
		if len(entries) == 0 {
			fmt.Println("Journal is empty.")
			return nil
		}

		paths := make([]string, 0, len(entries))
		for p := range entries {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		for _, p := range paths {
			e := entries[p]
			fmt.Printf("%-60s  %10d  %s\n", p, e.Size, e.Dest)
		}
		fmt.Printf("\n%d file(s) tracked.\n", len(paths))
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent mirror operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			detail := ""
			if op.Detail != "" {
				detail = "  " + op.Detail
			}
			fmt.Printf("#%d  %-7s  %s  %-6s  %s%s\n",
				op.ID,
				op.Kind,
				op.CreatedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				op.SourcePath,
				detail,
			)
		}
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init DESTINATION",
	Short: "Initialize configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(args[0], defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Destination: %s\n", cfg.Destination)
		fmt.Printf("State Dir:   %s\n", cfg.StateDir)
		fmt.Println("Add watch_paths entries before starting the daemon.")
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

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Destination: %s\n", cfg.Destination)
		fmt.Printf("State Dir:   %s\n", cfg.StateDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Store:       %s\n", storeLabel(cfg))
		fmt.Printf("Rescan:      every %ds\n", cfg.RescanIntervalSecs)
		fmt.Printf("Flush:       every %ds\n", cfg.FlushIntervalSecs)
		for _, p := range cfg.WatchPaths {
			fmt.Printf("Watch:       %s\n", p)
		}
		return nil
	},
}

func storeLabel(cfg *config.Config) string {
	switch cfg.Store.Type {
	case "", "filesystem":
		return "filesystem"
	case "s3":
		return fmt.Sprintf("s3 (bucket %s)", cfg.Store.S3Bucket)
	default:
		return cfg.Store.Type
	}
}

var configKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate encryption keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		if cfg.Encryption.Type != "age" {
			return fmt.Errorf("encryption is not enabled; set encryption.type = \"age\" in the config")
		}

		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return fmt.Errorf("creating encryptor: %w", err)
		}

		if enc.IsConfigured() {
			return fmt.Errorf("keys already exist at %s", cfg.Encryption.PrivateKeyPath)
		}

		pass, err := promptPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := enc.Setup(pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// decrypt command
var decryptCmd = &cobra.Command{
	Use:   "decrypt FILE",
	Short: "Decrypt a mirrored file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath, _ := cmd.Flags().GetString("output")

		cfg, err := readConfig()
		if err != nil {
			return err
		}

		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return fmt.Errorf("creating encryptor: %w", err)
		}
		if enc == nil {
			return fmt.Errorf("encryption is not enabled")
		}

		pass, err := promptPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		dctx, err := enc.Unlock(pass)
		if err != nil {
			return fmt.Errorf("unlocking private key: %w", err)
		}

		in, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening encrypted file: %w", err)
		}
		defer in.Close()

		out := os.Stdout
		if outPath != "" {
			f, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		if err := dctx.Decrypt(in, out); err != nil {
			return fmt.Errorf("decrypting: %w", err)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeygenCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(rescanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(decryptCmd)
	decryptCmd.Flags().StringP("output", "o", "", "Write decrypted output to this file instead of stdout")
}
