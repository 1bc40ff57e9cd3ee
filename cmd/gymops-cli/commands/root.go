package commands

import (
	"context"
	"fmt"
	"os"

	"gymops-backend/lib/configutil"
	configsqlite "gymops-backend/lib/configutil/sqlite"
	"gymops-backend/lib/invoicer"
	"gymops-backend/lib/paystore"
	paystoredb "gymops-backend/lib/paystore/db"
	"gymops-backend/lib/restyutil"
	"gymops-backend/lib/scrapers/clubhub"
	"gymops-backend/lib/secrets"
	"gymops-backend/lib/telemetry"
	"gymops-backend/lib/util/serviceutil"

	"gymops-backend/services/billingsync"

	"github.com/spf13/cobra"
)

type PortalConfig struct {
	BaseUrl          string `json:"base_url"`
	CloudflareBypass bool   `json:"cloudflare_bypass"`
}

type InvoicerConfig struct {
	BaseUrl string `json:"base_url"`
}

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
}

type ReportConfig struct {
	Recipients []string `json:"recipients"`
}

type Config struct {
	Portal   PortalConfig        `json:"portal"`
	Database configsqlite.Struct `json:"database"`
	Invoicer InvoicerConfig      `json:"invoicer"`
	Smtp     SmtpConfig          `json:"smtp"`
	Report   ReportConfig        `json:"report"`
	// local-only secret fallback, the real values come from the
	// environment
	Secrets map[string]string `json:"secrets"`
}

var (
	configPath  string
	verbose     bool
	dumpHttpDir string

	config   Config
	provider secrets.Provider
	service  billingsync.Service

	shutdownTelemetry = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "gymops-cli",
	Short: "gymops-cli reads member billing status out of the ClubHub portal.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdownTelemetry()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "gymops.json5", "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dumpHttpDir, "dump-http", "", "dump full portal request/response transcripts into this directory (implies --verbose)")
}

func setup(ctx context.Context) error {
	// transcripts are only captured at debug level
	telemetry.InitSlog(verbose || dumpHttpDir != "")

	var err error
	config, err = configutil.ReadConfig[Config](configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	provider = secrets.NewProvider(config.Secrets)

	tel, err := telemetry.SetupFromEnv(ctx, "gymops-cli")
	if err == nil {
		telemetry.InstrumentPerfStats(ctx)
		shutdownTelemetry = func() {
			tel.Shutdown(context.Background())
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	creds, err := provider.Require(secrets.ClubHubUsername, secrets.ClubHubPassword)
	if err != nil {
		return err
	}

	portal, err := clubhub.NewClient(ctx, clubhub.ClientOptions{
		BaseUrl:          config.Portal.BaseUrl,
		Username:         creds[secrets.ClubHubUsername],
		Password:         creds[secrets.ClubHubPassword],
		CloudflareBypass: config.Portal.CloudflareBypass,
	})
	if err != nil {
		return fmt.Errorf("failed to create portal client: %w", err)
	}
	if dumpHttpDir != "" {
		portal.SetInstrumentOutput(restyutil.NewFilesystemOutput(dumpHttpDir))
	}

	db, err := config.Database.OpenDB(paystoredb.Schema)
	if err != nil {
		return fmt.Errorf("failed to open billing cache: %w", err)
	}

	var processor *invoicer.Client
	if config.Invoicer.BaseUrl != "" {
		token, ok := provider.Get(secrets.InvoicerToken)
		if !ok {
			return fmt.Errorf("invoicer is configured but the %s secret is missing", secrets.InvoicerToken)
		}
		processor, err = invoicer.NewClient(invoicer.Options{
			BaseUrl:  config.Invoicer.BaseUrl,
			ApiToken: token,
		})
		if err != nil {
			return err
		}
	}

	service = billingsync.NewService(billingsync.Options{
		Portal:   portal,
		Store:    paystore.NewStore(db),
		Invoicer: processor,
	})
	return nil
}

func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		serviceutil.Fatal("command failed", err)
	}
}
