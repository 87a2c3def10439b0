// Package cmd provides the root command for the hfetch CLI.
package cmd

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/adamwoolhether/hfetch/client"
	"github.com/adamwoolhether/hfetch/client/auth"
	"github.com/adamwoolhether/hfetch/client/target"
)

// flags holds the values bound to the root command's flags.
type flags struct {
	output       string
	outputDir    string
	include      bool
	progress     bool
	skipExisting bool
	checksum     string
	data         string
	contentType  string
	user         string
	noPrompt     bool
	userAgent    string
	accept       string
	proxy        string
	firewall     string
	maxRedirects int
	maxAuth      int
	noFollow     bool
	timeout      time.Duration
	readTimeout  time.Duration
	parallel     int
	rps          int
	burst        int
	level        string
	configPath   string
	version      bool
}

// NewRootCmd creates the root command for the hfetch CLI.
func NewRootCmd() *cobra.Command {
	var f flags

	var cfg *Config // cfg is not set via CLI flag

	loadConfig := func(cmd *cobra.Command) error {
		var err error
		switch {
		case cmd.Flags().Changed("config"):
			cfg, err = loadConfigFile(f.configPath)
		case os.Getenv(ConfigEnv) != "":
			cfg, err = loadConfigFile(os.Getenv(ConfigEnv))
		default:
			cfg, err = LoadDefaultConfig()
		}

		return err
	}

	root := &cobra.Command{
		Use:   "hfetch [flags] URL...",
		Short: "Fetch documents over HTTP/1.0",
		Example: `
hfetch http://example.test/index.html

hfetch -i -d 'q=gopher' http://example.test/search

hfetch -O downloads --parallel 4 http://example.test/a.gif http://example.test/b.gif

hfetch --proxy proxy.internal:3128 -u alice:secret http://intranet.test/private
`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			l, err := log.ParseLevel(f.level)
			if err != nil {
				return err
			}
			logger := log.FromContext(cmd.Context())
			logger.SetLevel(l)

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := log.FromContext(ctx)

			if f.version {
				fmt.Fprintln(cmd.OutOrStdout(), version())
				return nil
			}

			if len(args) == 0 {
				return errors.New("at least one URL is required")
			}

			// default < cfg < flags
			f.merge(cmd, cfg)

			var prompter auth.Prompter
			switch {
			case f.user != "":
				prompter = fixedPrompter(f.user)
			case !f.noPrompt:
				prompter = newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			}

			opts, err := f.clientOptions(slog.New(logger), prompter)
			if err != nil {
				return err
			}

			c, err := client.Build(opts...)
			if err != nil {
				return fmt.Errorf("failed to configure client: %w", err)
			}

			targets := make([]target.Target, 0, len(args))
			for _, arg := range args {
				t, err := target.Parse(arg)
				if err != nil {
					return fmt.Errorf("failed to parse %q: %w", arg, err)
				}
				if cmd.Flags().Changed("data") {
					t = t.WithPost([]byte(f.data), f.contentType)
				}
				targets = append(targets, t)
			}

			switch {
			case len(targets) > 1 || f.outputDir != "":
				if f.output != "" || f.checksum != "" {
					return errors.New("--output and --checksum apply to a single URL")
				}
				return downloadAll(ctx, c, targets, f)

			case f.output != "":
				return c.Download(ctx, targets[0], f.output, f.downloadOptions()...)

			default:
				return fetchTo(ctx, cmd.OutOrStdout(), c, targets[0], f.include)
			}
		},
	}

	root.Flags().StringVarP(&f.output, "output", "o", "", "Write the body to a file instead of stdout")
	root.Flags().StringVarP(&f.outputDir, "output-dir", "O", "", "Download every URL into this directory")
	_ = root.MarkFlagDirname("output-dir")
	root.Flags().BoolVarP(&f.include, "include", "i", false, "Print the status line and headers before the body")
	root.Flags().BoolVar(&f.progress, "progress", false, "Log transfer progress")
	root.Flags().BoolVar(&f.skipExisting, "skip-existing", false, "Do not download files that already exist")
	root.Flags().StringVar(&f.checksum, "checksum", "", "Expected hex SHA-256 of the downloaded file")
	root.Flags().StringVarP(&f.data, "data", "d", "", "Send a POST request with this body")
	root.Flags().StringVar(&f.contentType, "content-type", "", "Content-Type of the POST body")
	root.Flags().StringVarP(&f.user, "user", "u", "", "Answer authentication challenges with user:password")
	root.Flags().BoolVar(&f.noPrompt, "no-prompt", false, "Never ask for credentials")
	root.Flags().StringVarP(&f.userAgent, "user-agent", "A", client.DefaultUserAgent, "User-Agent header")
	root.Flags().StringVar(&f.accept, "accept", client.DefaultAccept, "Accept header")
	root.Flags().StringVar(&f.proxy, "proxy", "", "Send every request through host:port")
	root.Flags().StringVar(&f.firewall, "firewall", "", "Retry through host:port when a host name does not resolve")
	root.Flags().IntVar(&f.maxRedirects, "max-redirects", client.DefaultMaxRedirects, "Maximum redirect hops")
	root.Flags().IntVar(&f.maxAuth, "max-auth-retries", client.DefaultMaxAuthRetries, "Maximum authentication retries per fetch")
	root.Flags().BoolVar(&f.noFollow, "no-follow", false, "Do not follow redirects")
	root.Flags().DurationVarP(&f.timeout, "timeout", "t", 0, "Connect timeout")
	root.Flags().DurationVar(&f.readTimeout, "read-timeout", 0, "Fail a read that stalls this long")
	root.Flags().IntVar(&f.parallel, "parallel", 4, "Concurrent downloads with --output-dir")
	root.Flags().IntVar(&f.rps, "rps", 0, "Connection opens per second")
	root.Flags().IntVar(&f.burst, "burst", 1, "Connection open burst with --rps")
	root.Flags().StringVarP(&f.level, "log-level", "l", "warn", "Set log level")
	_ = root.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{log.DebugLevel.String(), log.InfoLevel.String(), log.WarnLevel.String(), log.ErrorLevel.String()}, cobra.ShellCompDirectiveNoFileComp
	})
	root.Flags().StringVar(&f.configPath, "config", DefaultConfigPath, "Path to hfetch config file")
	_ = root.MarkFlagFilename("config", "yaml", "yml")
	root.Flags().BoolVarP(&f.version, "version", "V", false, "Print version number and exit")

	return root
}

// merge fills every flag the user did not set from cfg.
func (f *flags) merge(cmd *cobra.Command, cfg *Config) {
	if cfg == nil {
		return
	}

	changed := cmd.Flags().Changed

	if !changed("user-agent") && cfg.UserAgent != "" {
		f.userAgent = cfg.UserAgent
	}
	if !changed("accept") && cfg.Accept != "" {
		f.accept = cfg.Accept
	}
	if !changed("proxy") && cfg.Proxy != "" {
		f.proxy = cfg.Proxy
	}
	if !changed("firewall") && cfg.Firewall != "" {
		f.firewall = cfg.Firewall
	}
	if !changed("max-redirects") && cfg.MaxRedirects != nil {
		f.maxRedirects = *cfg.MaxRedirects
	}
	if !changed("max-auth-retries") && cfg.MaxAuthRetries != nil {
		f.maxAuth = *cfg.MaxAuthRetries
	}
	if !changed("parallel") && cfg.Parallel > 0 {
		f.parallel = cfg.Parallel
	}
	if !changed("rps") && cfg.Throttle != nil {
		f.rps, f.burst = cfg.Throttle.RPS, cfg.Throttle.Burst
	}

	// durations were checked by Validate
	if !changed("timeout") && cfg.Timeout != "" {
		f.timeout, _ = time.ParseDuration(cfg.Timeout)
	}
	if !changed("read-timeout") && cfg.ReadTimeout != "" {
		f.readTimeout, _ = time.ParseDuration(cfg.ReadTimeout)
	}
}

func (f *flags) clientOptions(logger *slog.Logger, prompter auth.Prompter) ([]client.Option, error) {
	opts := []client.Option{
		client.WithLogger(logger),
		client.WithUserAgent(f.userAgent),
		client.WithAccept(f.accept),
		client.WithMaxRedirects(f.maxRedirects),
		client.WithMaxAuthRetries(f.maxAuth),
		client.WithTimeout(f.timeout),
		client.WithReadTimeout(f.readTimeout),
	}

	if f.proxy != "" {
		host, port, err := splitAddr(f.proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid --proxy: %w", err)
		}
		opts = append(opts, client.WithProxy(host, port))
	}
	if f.firewall != "" {
		host, port, err := splitAddr(f.firewall)
		if err != nil {
			return nil, fmt.Errorf("invalid --firewall: %w", err)
		}
		opts = append(opts, client.WithFirewall(host, port))
	}
	if f.noFollow {
		opts = append(opts, client.WithNoFollowRedirects())
	}
	if f.progress {
		opts = append(opts, client.WithProgressLogging())
	}
	if f.rps > 0 {
		opts = append(opts, client.WithThrottle(f.rps, f.burst))
	}
	if prompter != nil {
		opts = append(opts, client.WithPrompter(prompter))
	}

	return opts, nil
}

func (f *flags) downloadOptions() []client.DownloadOption {
	var opts []client.DownloadOption

	if f.progress {
		opts = append(opts, client.WithProgress())
	}
	if f.skipExisting {
		opts = append(opts, client.WithSkipExisting())
	}
	if f.checksum != "" {
		opts = append(opts, client.WithChecksum(sha256.New(), f.checksum))
	}

	return opts
}

// fetchTo writes the body of t to w, preceded by the status line and
// headers when include is set.
func fetchTo(ctx context.Context, w io.Writer, c *client.Client, t target.Target, include bool) error {
	resp, err := c.Fetch(ctx, t)
	if err != nil {
		return err
	}
	defer resp.Close()

	if include {
		fmt.Fprintf(w, "%s\r\n", resp.Status.Line)
		for _, name := range resp.Header.Keys() {
			for _, v := range resp.Header.Values(name) {
				fmt.Fprintf(w, "%s: %s\r\n", name, v)
			}
		}
		fmt.Fprint(w, "\r\n")
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read body of %s: %w", t.Name(), err)
	}

	return nil
}

// downloadAll saves every target into f.outputDir, f.parallel at a time.
func downloadAll(ctx context.Context, c *client.Client, targets []target.Target, f flags) error {
	dir := f.outputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	opts := f.downloadOptions()
	names := localNames(targets)

	r, err := c.DownloadAsync(ctx, targets[0], filepath.Join(dir, names[0]), append(opts, client.WithBatch(f.parallel))...)
	if err != nil {
		return err
	}
	for i, t := range targets[1:] {
		r.Add(ctx, t, filepath.Join(dir, names[i+1]), opts...)
	}

	return r.Wait()
}

// localNames returns a distinct file name per target. A name already
// taken gets the first free numeric suffix, x.gif.1, x.gif.2 and so on.
func localNames(targets []target.Target) []string {
	names := make([]string, len(targets))
	taken := make(map[string]bool, len(targets))

	for i, t := range targets {
		name := fileName(t)
		for n := 1; taken[name]; n++ {
			name = fileName(t) + "." + strconv.Itoa(n)
		}
		taken[name] = true
		names[i] = name
	}

	return names
}

// fileName names the local copy of t after the last path element.
func fileName(t target.Target) string {
	name := path.Base(t.Path)
	if name == "/" || name == "." || name == "" {
		return "index.html"
	}

	return name
}

func version() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "(unknown)"
	}

	v := bi.Main.Version
	if bi.Main.Path != "github.com/adamwoolhether/hfetch" {
		v = ""
		for _, dep := range bi.Deps {
			if dep.Path == "github.com/adamwoolhether/hfetch" {
				v = dep.Version
				break
			}
		}
	}
	if v == "" {
		return "(devel)"
	}

	return v
}

// Main executes the root command for the hfetch CLI.
//
// It returns 0 on success, 1 on failure and logs any errors.
func Main() int {
	cli := NewRootCmd()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
	})

	ctx = log.WithContext(ctx, logger)
	cmd, err := cli.ExecuteContextC(ctx)
	if err != nil {
		if errors.Is(cmd.Context().Err(), context.Canceled) {
			logger.Error("interrupted")
		}
		logger.Error(err)
	}

	return ParseExitCode(err)
}

// ParseExitCode calculates the exit code from a given error
//
// 0 - the error was nil
// 130 - the fetch was interrupted
// 1 - there was some other error
func ParseExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}
