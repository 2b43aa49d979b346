// Command garage-layout imports parking-site workbooks and writes the XML
// configuration consumed by the camera recorder, display controller and
// sensor controller services.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"garage-layout/internal/common/logger"
	"garage-layout/internal/config"
	"garage-layout/internal/domain"
	httpapi "garage-layout/internal/http"
	"garage-layout/internal/service"
	"garage-layout/internal/xmlcodec"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	Version = "0.1.0"
	appName = "garage-layout"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

// setup loads configuration and builds the logger before any command runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.cfg = config.Load()
	if a.configPath != "" {
		if err := a.cfg.LoadFile(a.configPath); err != nil {
			return err
		}
	}
	if a.logLevel != "" {
		a.cfg.Log.Level = a.logLevel
	}
	l, err := logger.NewLogger(a.cfg.Log.Level, a.cfg.Log.Format, appName)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = l
	return nil
}

func rootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:               appName,
		Short:             "Parking site configuration pipeline",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		a.importCmd(),
		a.exportCmd(),
		a.validateCmd(),
		a.parseCmd(),
		a.templateCmd(),
		a.serveCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadSite imports the workbook at path into a fresh service.
func (a *app) loadSite(ctx context.Context, path string) (*service.SiteService, *stack, *service.ImportSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	st := buildStack(ctx, a.cfg, a.logger)
	svc := st.siteService(a.cfg, a.logger)
	sum, err := svc.Import(data)
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}
	return svc, st, sum, nil
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <workbook.xlsx>",
		Short: "Import a workbook and print a summary with validation findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, sum, err := a.loadSite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer st.Close()
			return printJSON(cmd, sum)
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "export <workbook.xlsx>",
		Short: "Import a workbook and write every configuration document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir != "" {
				a.cfg.Output.Dir = outDir
			}
			svc, st, _, err := a.loadSite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer st.Close()
			res, err := svc.ExportSite(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (overrides OUTPUT_DIR)")
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate <workbook.xlsx>",
		Short: "Import a workbook and report model inconsistencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, st, _, err := a.loadSite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer st.Close()
			findings := svc.Validate()
			if findings == nil {
				findings = []domain.Finding{}
			}
			if err := printJSON(cmd, findings); err != nil {
				return err
			}
			if strict && len(findings) > 0 {
				return fmt.Errorf("%d validation findings", len(findings))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when there are findings")
	return cmd
}

func (a *app) parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "parse camerahub|devices <file.xml>",
		Short:     "Parse an existing CameraHub or DevicesConfig document",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"camerahub", "devices"},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}
			var devs []domain.Device
			switch args[0] {
			case "camerahub":
				devs, err = xmlcodec.ParseCameraHubXMLStrict(string(data))
			case "devices":
				devs, err = xmlcodec.ParseDevicesConfigXMLStrict(string(data))
			default:
				return fmt.Errorf("unknown document kind %q (want camerahub or devices)", args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, devs)
		},
	}
}

func (a *app) templateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template <out.xlsx>",
		Short: "Write an empty site workbook with every recognized sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := service.NewSiteService(service.SiteServiceConfig{Logger: a.logger}).Template()
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], data, 0o644); err != nil {
				return fmt.Errorf("failed to write template: %w", err)
			}
			a.logger.Info("Template written", zap.String("path", args[0]))
			return nil
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	var workbookPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			st := buildStack(ctx, a.cfg, a.logger)
			defer st.Close()
			svc := st.siteService(a.cfg, a.logger)

			if workbookPath != "" {
				data, err := os.ReadFile(workbookPath)
				if err != nil {
					return fmt.Errorf("failed to read workbook: %w", err)
				}
				if _, err := svc.Import(data); err != nil {
					return err
				}
			}

			router := httpapi.NewRouter(httpapi.NewSiteHandler(svc, a.logger), a.logger)
			srv := service.NewServer(a.cfg.HTTP.Addr, router, a.logger)

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := srv.Run(ctx, 5*time.Second); err != nil {
				return err
			}
			a.logger.Info("Server exited")
			return nil
		},
	}
	cmd.Flags().StringVar(&workbookPath, "workbook", "", "Workbook to load at startup")
	return cmd
}
