// Package main is the entrypoint for the backupctl CLI.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/MacJediWizard/backupctl/internal/agent"
	"github.com/MacJediWizard/backupctl/internal/backupform"
	"github.com/MacJediWizard/backupctl/internal/config"
	"github.com/MacJediWizard/backupctl/internal/console"
	"github.com/MacJediWizard/backupctl/internal/httpclient"
	"github.com/MacJediWizard/backupctl/internal/logging"
	"github.com/MacJediWizard/backupctl/internal/metrics"
	"github.com/MacJediWizard/backupctl/internal/webui"
	"github.com/MacJediWizard/backupctl/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Exit codes for form submissions.
const (
	exitFailed  = 1
	exitInvalid = 2
)

// exitError carries a process exit code. Its message has already been shown
// to the user.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by all commands.
type globalOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "backupctl",
		Short: "Start and inspect backups on a backup server",
		Long: `backupctl submits ad-hoc backups to a backup server and shows
its status and history.

Run 'backupctl config set-server <url>' to point it at a server.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.backupctl/config.yml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(opts),
		newStatusCmd(opts),
		newHistoryCmd(opts),
		newRunCmd(opts),
		newProfilesCmd(opts),
		newCreateCmd(opts),
		newUICmd(opts),
	)

	return rootCmd
}

func (o *globalOptions) path() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	return config.DefaultConfigPath()
}

func (o *globalOptions) load() (*config.AgentConfig, error) {
	path, err := o.path()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

// connect loads the configuration and builds a logger and API client from it.
func (o *globalOptions) connect(stderr io.Writer) (*config.AgentConfig, *agent.Client, zerolog.Logger, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, zerolog.Logger{}, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, zerolog.Logger{}, fmt.Errorf("backupctl not configured: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, stderr)
	client, err := newClient(cfg, logger)
	if err != nil {
		return nil, nil, zerolog.Logger{}, err
	}
	return cfg, client, logger, nil
}

func newClient(cfg *config.AgentConfig, logger zerolog.Logger) (*agent.Client, error) {
	httpClient, err := httpclient.NewWithConfig(cfg, "backupctl/"+Version)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}
	if cfg.Proxy.HasProxy() {
		logger.Debug().Str("proxy", httpclient.ProxyInfo(cfg.Proxy)).Msg("using proxy")
	}
	return agent.NewClient(cfg.ServerURL, cfg.APIKey, httpClient, logger), nil
}

// backend is what the UI needs from the server.
type backend interface {
	backupform.Submitter
	webui.StatusChecker
}

// liveClient forwards to the client built from the most recent config.
type liveClient struct {
	current atomic.Pointer[agent.Client]
}

func newLiveClient(c *agent.Client) *liveClient {
	l := &liveClient{}
	l.current.Store(c)
	return l
}

func (l *liveClient) RunBackup(ctx context.Context, req *models.RunBackupRequest) (*models.RunBackupResponse, error) {
	return l.current.Load().RunBackup(ctx, req)
}

func (l *liveClient) SystemStatus(ctx context.Context) (*models.SystemStatus, error) {
	return l.current.Load().SystemStatus(ctx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backupctl %s\n", Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage backupctl configuration",
	}

	cmd.AddCommand(
		newConfigShowCmd(opts),
		newConfigSetServerCmd(opts),
		newConfigSetAPIKeyCmd(opts),
	)

	return cmd
}

func newConfigShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			path, _ := opts.path()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Config file: %s\n", path)
			fmt.Fprintln(out)

			if !cfg.IsConfigured() {
				fmt.Fprintln(out, "Server is not configured. Run 'backupctl config set-server <url>' to set up.")
				return nil
			}

			fmt.Fprintf(out, "Server URL: %s\n", cfg.ServerURL)
			if cfg.APIKey != "" {
				fmt.Fprintf(out, "API Key:    %s\n", maskAPIKey(cfg.APIKey))
			}
			fmt.Fprintf(out, "Timeout:    %s\n", cfg.Timeout)
			fmt.Fprintf(out, "Log level:  %s (%s)\n", cfg.LogLevel, cfg.LogFormat)
			fmt.Fprintf(out, "UI listen:  %s\n", cfg.UIListen)
			fmt.Fprintf(out, "Proxy:      %s\n", httpclient.ProxyInfo(cfg.Proxy))

			return nil
		},
	}
}

func newConfigSetServerCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-server <url>",
		Short: "Set the backup server URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL := strings.TrimSuffix(strings.TrimSpace(args[0]), "/")
			if err := config.ValidateServerURL(serverURL); err != nil {
				return err
			}

			return updateConfig(opts, func(cfg *config.AgentConfig) {
				cfg.ServerURL = serverURL
			}, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Server URL set to: %s\n", serverURL)
			})
		},
	}
}

func newConfigSetAPIKeyCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-api-key",
		Short: "Store the API key sent to the server (read from stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), "Enter API key: ")
			apiKey, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("read API key: %w", err)
			}
			apiKey = strings.TrimSpace(apiKey)
			if apiKey == "" {
				return errors.New("API key cannot be empty")
			}

			return updateConfig(opts, func(cfg *config.AgentConfig) {
				cfg.APIKey = apiKey
			}, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "\nAPI key set to: %s\n", maskAPIKey(apiKey))
			})
		},
	}
}

// updateConfig applies change to the config file on disk. Environment
// overrides are not written back.
func updateConfig(opts *globalOptions, change func(*config.AgentConfig), done func()) error {
	path, err := opts.path()
	if err != nil {
		return err
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	change(cfg)

	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	done()
	return nil
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status and the last backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, _, err := opts.connect(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Server: %s\n", cfg.ServerURL)
			fmt.Fprint(out, "Checking server connection... ")

			status, err := client.SystemStatus(cmd.Context())
			if err != nil {
				fmt.Fprintln(out, "FAILED")
				return err
			}
			if !status.OK {
				fmt.Fprintln(out, "NOT OK")
			} else {
				fmt.Fprintln(out, "OK")
			}

			if status.LastBackup == nil {
				fmt.Fprintln(out, "Last backup: none")
				return nil
			}
			b := status.LastBackup
			fmt.Fprintln(out, "Last backup:")
			fmt.Fprintf(out, "  Name:    %s\n", b.Name)
			fmt.Fprintf(out, "  Date:    %s\n", b.Date)
			fmt.Fprintf(out, "  Status:  %s\n", b.Status)
			fmt.Fprintf(out, "  Size:    %s\n", formatSize(b.Size))
			if b.Path != "" {
				fmt.Fprintf(out, "  Path:    %s\n", b.Path)
			}
			return nil
		},
	}
}

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, _, err := opts.connect(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			backups, err := client.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No backups found.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tNAME\tSTATUS\tSIZE\tSOURCES")
			for _, b := range backups {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.Date, b.Name, b.Status, formatSize(b.Size), b.Sources)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of backups to list")

	return cmd
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	var (
		sources     []string
		destination string
		upload      string
		profile     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a backup of the given sources",
		Long: `Start a backup of the given sources.

Sources may be given as repeated --sources flags or as a single value
separated by ';' or new lines. --upload-to-drive accepts true/yes or
false/no; when omitted the server default applies.

--profile runs a stored profile instead (an id from "backupctl profiles",
or "default"); it cannot be combined with the form flags.`,
		Example: `  backupctl run --sources "/etc;/home/me/docs" --destination /mnt/nas
  backupctl run --sources /etc --sources /var/www --upload-to-drive=false
  backupctl run --profile default`,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("profile") {
				if len(sources) > 0 || destination != "" || upload != "" {
					return usageError(cmd, errors.New("--profile cannot be combined with --sources, --destination or --upload-to-drive"))
				}
				profileID, err := parseProfileID(profile)
				if err != nil {
					return usageError(cmd, err)
				}
				return runProfile(cmd, opts, profileID)
			}

			uploadValue, ok := console.ParseUploadAnswer(upload)
			if !ok {
				return usageError(cmd, fmt.Errorf("invalid --upload-to-drive value %q: use true, false, yes or no", upload))
			}

			_, client, logger, err := opts.connect(cmd.ErrOrStderr())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}

			page := console.NewPage(cmd.OutOrStdout(), cmd.ErrOrStderr())
			if _, ok := backupform.Attach(page, client, backupform.WithLogger(logger)); !ok {
				return errors.New("create-backup form could not be attached")
			}
			page.SetValues(strings.Join(sources, "\n"), destination, uploadValue)

			return submitResult(page.Submit(cmd.Context()))
		},
	}

	cmd.Flags().StringArrayVar(&sources, "sources", nil, "paths to back up (repeatable, or separated by ';')")
	cmd.Flags().StringVar(&destination, "destination", "", "backup destination (server default when empty)")
	cmd.Flags().StringVar(&upload, "upload-to-drive", "", "upload the archive to drive: true/yes or false/no")
	cmd.Flags().StringVar(&profile, "profile", "", `run a stored profile by id, or "default"`)

	return cmd
}

func newCreateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "create",
		Short:         "Fill in the create-backup form interactively",
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, logger, err := opts.connect(cmd.ErrOrStderr())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}

			page := console.NewPage(cmd.OutOrStdout(), cmd.ErrOrStderr())
			if _, ok := backupform.Attach(page, client, backupform.WithLogger(logger)); !ok {
				return errors.New("create-backup form could not be attached")
			}

			err = console.NewPrompter(page, cmd.InOrStdin(), cmd.OutOrStdout()).Run(cmd.Context())
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
				return &exitError{code: exitFailed, err: err}
			}
			return submitResult(err)
		},
	}
}

// usageError reports a bad flag combination or value with the invalid-input exit code.
func usageError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	return &exitError{code: exitInvalid, err: err}
}

func parseProfileID(value string) (*int64, error) {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "default") {
		return nil, nil
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid --profile value %q: use a profile id or \"default\"", value)
	}
	return &id, nil
}

// runProfile starts a stored profile and reports the result in the same
// words as the form.
func runProfile(cmd *cobra.Command, opts *globalOptions, profileID *int64) error {
	_, client, logger, err := opts.connect(cmd.ErrOrStderr())
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	out := cmd.OutOrStdout()

	resp, err := client.RunProfile(cmd.Context(), profileID)
	if err != nil {
		logger.Error().Err(err).Str("path", models.RunProfilePath).Msg("error while calling backup API")
		fmt.Fprintln(out, "error: "+backupform.MessageUnexpected)
		return &exitError{code: exitFailed, err: err}
	}
	if !resp.OK {
		logger.Warn().Msg("server reported that the profile backup did not start")
		fmt.Fprintln(out, "error: "+backupform.MessageRejected)
		return &exitError{code: exitFailed, err: errors.New("server response ok is false")}
	}
	fmt.Fprintln(out, "ok: "+backupform.MessageStarted)
	return nil
}

func newProfilesCmd(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List stored backup profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, _, err := opts.connect(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			profiles, err := client.Profiles(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(profiles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No profiles found.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tFREQUENCY\tDEFAULT")
			for _, p := range profiles {
				def := ""
				if p.IsDefault {
					def = "yes"
				}
				freq := p.BackupFrequency
				if freq == "" {
					freq = "-"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Name, freq, def)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of profiles to list")

	return cmd
}

// submitResult turns a form submission result into the command's error.
// Feedback has already been printed by the page.
func submitResult(err error) error {
	if err == nil {
		return nil
	}
	if backupform.IsValidation(err) {
		return &exitError{code: exitInvalid, err: err}
	}
	return &exitError{code: exitFailed, err: err}
}

func newUICmd(opts *globalOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Serve the create-backup form over HTTP",
		Long: `Serve the create-backup form over HTTP.

Changes to the config file and to the .env file next to it are picked
up while the UI is running; the listen address only takes effect on
restart. Variables set in the environment before start always win over
.env values.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, logger, err := opts.connect(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if listen == "" {
				listen = cfg.UIListen
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			live := newLiveClient(client)
			if path, err := opts.path(); err == nil {
				go func() {
					err := config.Watch(ctx, path, 0, logger, func(next *config.AgentConfig) {
						c, err := newClient(next, logger)
						if err != nil {
							logger.Warn().Err(err).Msg("keeping previous server client")
							return
						}
						live.current.Store(c)
						logger.Info().Str("server", next.ServerURL).Msg("server client updated")
					})
					if err != nil {
						logger.Warn().Err(err).Msg("config changes will not be picked up")
					}
				}()
			}

			return runUI(ctx, listen, live, logger)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default from config, 127.0.0.1:8090)")

	return cmd
}

func runUI(ctx context.Context, listen string, client backend, logger zerolog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.NewPrometheusMetrics(reg)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	router, err := webui.NewRouter(webui.DefaultConfig(), webui.Dependencies{
		Submitter: client,
		Status:    client,
		Recorder:  m,
		Gatherer:  reg,
	}, logger)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	srv := &http.Server{
		Addr:              listen,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", listen).Msg("Serving create-backup form")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve ui: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}

	logger.Info().Msg("Shutting down UI server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown ui: %w", err)
	}
	logger.Info().Msg("UI server stopped gracefully")
	return nil
}

// formatSize renders a byte count for display.
func formatSize(size *int64) string {
	if size == nil {
		return "-"
	}
	const unit = 1024
	b := *size
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

// maskAPIKey returns a masked version of the API key for display.
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
