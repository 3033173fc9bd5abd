package cmd

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/brogergvhs/piccomad/internal/catalog"
	"github.com/brogergvhs/piccomad/internal/config"
	"github.com/brogergvhs/piccomad/internal/downloader"
	"github.com/brogergvhs/piccomad/internal/session"
	"github.com/brogergvhs/piccomad/internal/ui"
	"github.com/brogergvhs/piccomad/internal/util"

	"github.com/dustin/go-humanize"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var (
	// selection
	flagSerie int
	flagType  string
	flagUnits string
	flagAll   bool

	// runtime
	flagOutput     string
	flagWorkers    int
	flagRetries    int
	flagPace       int
	flagDryRun     bool
	flagSkipBroken bool

	// headers/auth
	flagUser       string
	flagCookie     string
	flagCookieFile string
	flagUserAgent  string
)

func init() {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download episodes or volumes of a serie and produce CBZ files. Uses the defaults from the selected config, overwritten by CLI flags",
		RunE:  runDownload,
	}

	// selection
	downloadCmd.Flags().IntVarP(&flagSerie, "serie", "s", 0, "serie ID (the number in the serie page URL)")
	downloadCmd.Flags().StringVarP(&flagType, "type", "t", "", "unit type: episode or volume")
	downloadCmd.Flags().StringVarP(&flagUnits, "units", "n", "", "units to download by number (e.g. 1,3,8 or 2-5)")
	downloadCmd.Flags().BoolVar(&flagAll, "all", false, "download every unit of the selected type")

	// runtime
	downloadCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output folder for CBZ files")
	downloadCmd.Flags().IntVarP(&flagWorkers, "workers", "w", 0, "parallel page downloads per unit (0 = config)")
	downloadCmd.Flags().IntVarP(&flagRetries, "retries", "r", 0, "attempts per page before giving up (0 = config)")
	downloadCmd.Flags().IntVar(&flagPace, "pace", 0, "milliseconds between requests (0 = config)")
	downloadCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show what would be downloaded, don’t download")
	downloadCmd.Flags().BoolVar(&flagSkipBroken, "skip-broken", false, "write units with failed pages left out instead of dropping the unit")

	// headers/auth
	downloadCmd.Flags().StringVarP(&flagUser, "user", "u", "", "account email (password from PICCOMAD_PASSWORD or an interactive prompt)")
	downloadCmd.Flags().StringVar(&flagCookie, "cookie", "", "cookie string, e.g. \"access_token=...; other=123\"")
	downloadCmd.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies (one header line)")
	downloadCmd.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, _ []string) error {
	cfg, usedPath, err := config.LoadMerged(config.Options{
		IgnoreConfig: flagIgnoreConfig,
		Debug:        flagDebug,
		Output:       flagOutput,
		Workers:      flagWorkers,
		Retries:      flagRetries,
		PaceMs:       flagPace,
		DefaultSerie: flagSerie,
		DefaultType:  flagType,
		User:         flagUser,
		Cookie:       flagCookie,
		CookieFile:   flagCookieFile,
		UserAgent:    flagUserAgent,
		SkipBroken:   flagSkipBroken,
	})
	if err != nil {
		return err
	}

	logSvc := ui.NewLogger(cfg.Debug)
	if usedPath != "" {
		fmt.Printf("Config file: %s\n", usedPath)
	}

	if err := os.MkdirAll(cfg.Output, 0755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}

	fmt.Println("Full config:")
	cfg.Print()
	fmt.Println()

	if cfg.DefaultSerie == 0 {
		return &catalog.InvalidRequestError{Reason: "missing --serie and no default_serie in config"}
	}

	unitType, err := catalog.ParseUnitType(cfg.DefaultType)
	if err != nil {
		return err
	}

	sel, err := unitSelection()
	if err != nil {
		return err
	}

	client, err := util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:     30 * time.Second,
		UserAgent:   util.PickUserAgent(cfg.UserAgent),
		Referer:     session.DefaultBaseURL,
		Cookie:      cfg.Cookie,
		CookieFile:  cfg.CookieFile,
		Pace:        time.Duration(cfg.PaceMs) * time.Millisecond,
		DebugLogger: logSvc,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	util.SetupInterruptHandler(cancel)

	sess := session.New(client, session.DefaultBaseURL, logSvc)
	if err := login(ctx, sess, cfg.User, logSvc); err != nil {
		return err
	}

	resolver := catalog.NewResolver(sess, logSvc)
	resolved, err := resolver.Resolve(ctx, cfg.DefaultSerie, unitType, sel)
	if err != nil {
		return err
	}

	if len(resolved.Units) == 0 {
		return fmt.Errorf("serie %d has no %ss to download", resolved.SerieID, unitType)
	}

	fmt.Printf("Serie %d: %s\n\n", resolved.SerieID, resolved.Title)

	if flagDryRun {
		fmt.Printf("Dry-run: %d units selected.\n\n", len(resolved.Units))
		for i, res := range resolved.Units {
			note := fmt.Sprintf("%d pages", len(res.Pages))
			if res.Err != nil {
				note = res.Err.Error()
			} else if len(res.PageErrs) > 0 {
				note = fmt.Sprintf("%d pages, %d broken", len(res.Pages), len(res.PageErrs))
			}
			fmt.Printf("%3d) %s  [%s]\n    %s\n", i+1, res.Unit.Title, res.Unit.Label(), note)
		}
		return nil
	}

	serieDir := filepath.Join(cfg.Output, util.SanitizeName(resolved.Title))
	if err := os.MkdirAll(serieDir, 0755); err != nil {
		return fmt.Errorf("cannot create serie folder: %w", err)
	}

	pm := ui.NewProgressManager()
	stats := &ui.Stats{}
	dl := downloader.New(sess, downloader.Options{
		Workers: cfg.Workers,
		Retry:   downloader.BackoffPolicy{MaxAttempts: cfg.Retries},
		Logger:  logSvc,
		Progress: func(unit catalog.Unit) downloader.Progress {
			return pm.Register(unit.Label())
		},
	})
	start := time.Now()

	var broken []string
	var failedUnits int

	for _, res := range resolved.Units {
		target := filepath.Join(serieDir, util.SanitizeName(res.Unit.Title)+".cbz")

		if _, err := os.Stat(target); err == nil {
			logSvc.Infof("%s already exists, skipping", filepath.Base(target))
			stats.SkippedUnits.Add(1)
			continue
		}

		if res.Err != nil {
			logSvc.Errorf("Cannot read %s: %v", res.Unit.Label(), res.Err)
			failedUnits++
			continue
		}

		var files []util.ArchiveFile
		var encodeErr error

		report := dl.RunUnit(ctx, res, func(p downloader.Page) {
			if encodeErr != nil {
				return
			}
			var buf bytes.Buffer
			if err := png.Encode(&buf, p.Image); err != nil {
				encodeErr = fmt.Errorf("encode page %d: %w", p.Index, err)
				return
			}
			files = append(files, util.ArchiveFile{
				Name: fmt.Sprintf("p%03d.png", p.Index),
				Data: buf.Bytes(),
			})
		})

		if report.Remaining > 0 { // cancelled mid-unit
			failedUnits++
			break
		}

		if encodeErr != nil {
			logSvc.Errorf("%s: %v", res.Unit.Label(), encodeErr)
			failedUnits++
			continue
		}

		if len(report.Failed) > 0 {
			stats.FailedPages.Add(int64(len(report.Failed)))
			broken = append(broken, failureLine(res.Unit, report.Failed))

			if !cfg.SkipBroken {
				logSvc.Errorf("%s: %d of %d pages failed, dropping the unit", res.Unit.Label(), len(report.Failed), len(res.Pages))
				failedUnits++
				continue
			}
		}

		if len(files) == 0 {
			logSvc.Errorf("%s: no pages downloaded", res.Unit.Label())
			failedUnits++
			continue
		}

		if err := util.WriteCBZ(target, files); err != nil {
			logSvc.Errorf("CBZ for %s failed: %v", res.Unit.Label(), err)
			failedUnits++
			continue
		}

		stats.TotalUnits.Add(1)
		stats.TotalPages.Add(int64(report.Done))
		stats.TotalBytes.Add(report.Bytes)
	}

	pm.Close()

	fmt.Println()
	fmt.Println("Download Summary:")
	fmt.Printf("Units:   %d written", stats.TotalUnits.Load())
	if n := stats.SkippedUnits.Load(); n > 0 {
		fmt.Printf(", %d skipped", n)
	}
	if failedUnits > 0 {
		fmt.Printf(", %d failed", failedUnits)
	}
	fmt.Println()
	fmt.Printf("Pages:   %d\n", stats.TotalPages.Load())
	fmt.Printf("Data:    %s\n", humanize.Bytes(uint64(stats.TotalBytes.Load())))
	fmt.Printf("Time:    %s\n", time.Since(start).Round(time.Second))

	if len(broken) > 0 {
		fmt.Println()
		fmt.Println("Failed pages:")
		for _, line := range broken {
			fmt.Println("  " + line)
		}
	}

	if ctx.Err() != nil {
		util.CleanupPartFiles(cfg.Output)
	}
	if stats.TotalUnits.Load() == 0 {
		util.RemoveIfEmpty(serieDir)
	}

	anyFailure := failedUnits > 0 || stats.FailedPages.Load() > 0

	switch {
	case !anyFailure:
		fmt.Println("\nAll done.")
		return nil
	case stats.TotalPages.Load() > 0:
		return ErrPartialSuccess
	case ctx.Err() != nil:
		return fmt.Errorf("interrupted, nothing written")
	default:
		return fmt.Errorf("nothing written")
	}
}

// unitSelection turns the -n/--all flag pair into a Selection. Asking
// for nothing, or for both, is refused rather than defaulted.
func unitSelection() (catalog.Selection, error) {
	switch {
	case flagAll && flagUnits != "":
		return catalog.Selection{}, &catalog.InvalidRequestError{Reason: "--all and --units are mutually exclusive"}
	case flagAll:
		return catalog.Selection{All: true}, nil
	case flagUnits != "":
		return catalog.ParseSelection(flagUnits)
	default:
		return catalog.Selection{}, &catalog.InvalidRequestError{Reason: "pick units with --units or --all"}
	}
}

// login signs the session in when credentials can be found: the -u flag
// or config user, PICCOMAD_EMAIL/PICCOMAD_PASSWORD, and finally a masked
// prompt for the password. Without an email the run stays anonymous.
func login(ctx context.Context, sess *session.Session, user string, logSvc *ui.Logger) error {
	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}

	email := user
	if email == "" {
		email = creds.Email
	}
	if email == "" {
		logSvc.Debugf("no credentials, browsing as guest")
		return nil
	}

	password := creds.Password
	if password == "" {
		prompt := promptui.Prompt{
			Label: "Password for " + email,
			Mask:  '*',
		}
		password, err = prompt.Run()
		if err != nil {
			return fmt.Errorf("password prompt cancelled")
		}
	}

	if err := sess.Login(ctx, email, password); err != nil {
		return err
	}

	fmt.Println("Logged in as", email)
	return nil
}

func failureLine(unit catalog.Unit, failed []downloader.PageFailure) string {
	idx := make([]string, len(failed))
	for i, f := range failed {
		idx[i] = strconv.Itoa(f.Index)
	}

	return fmt.Sprintf("%s: pages %s (%v)", unit.Label(), strings.Join(idx, ", "), failed[0].Err)
}
