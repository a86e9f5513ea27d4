package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pubcredit/internal/fetch"
	"github.com/ppiankov/pubcredit/internal/ledger"
)

var (
	fetchOut    string
	fetchMD5    bool
	fetchForce  bool
	fetchDigest bool
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Download a dump",
	Long: `Fetch downloads a dump (default: fetch.url from the configuration).

The download respects robots.txt, is rate limited per host, and sends
the ETag and Last-Modified of the previous download; an unchanged dump
is not downloaded again. The file is replaced atomically, so a failed
or unverified download leaves the previous copy in place.

Example:
  pubcredit fetch
  pubcredit fetch https://dblp.org/xml/dblp.xml.gz --verify-md5 -o data/dblp.xml.gz`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	f := fetchCmd.Flags()
	f.StringVarP(&fetchOut, "output", "o", "", "destination path (default: last URL path segment)")
	f.BoolVar(&fetchMD5, "verify-md5", false, "verify against <url>.md5")
	f.BoolVar(&fetchForce, "force", false, "download even if unchanged")
	f.BoolVar(&fetchDigest, "digest", false, "write a blake3 digest next to the file")
	f.String("user-agent", "", "HTTP User-Agent")
	f.String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	f.String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	f.String("no-proxy", "", "comma-separated hosts to reach directly (overrides NO_PROXY env var)")
	f.String("cache-dir", "", "directory for download metadata")
	f.Duration("timeout", 0, "overall download timeout")
}

func runFetch(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{
		"user-agent":  "fetch.user_agent",
		"http-proxy":  "fetch.http_proxy",
		"https-proxy": "fetch.https_proxy",
		"no-proxy":    "fetch.no_proxy",
		"cache-dir":   "fetch.cache_dir",
		"timeout":     "fetch.timeout",
	}); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rawURL := cfg.Fetch.URL
	if len(args) == 1 {
		rawURL = args[0]
	}
	if rawURL == "" {
		return fmt.Errorf("no URL: pass one or set fetch.url")
	}

	dest := fetchOut
	if dest == "" {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("parse URL: %w", err)
		}
		dest = path.Base(u.Path)
		if dest == "/" || dest == "." {
			return fmt.Errorf("cannot derive a file name from %s; use --output", rawURL)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := fetch.New(cfg.Fetch, nil).Fetch(ctx, fetch.Request{
		URL:       rawURL,
		Dest:      dest,
		VerifyMD5: fetchMD5,
		Force:     fetchForce,
	})
	if err != nil {
		return err
	}

	if res.NotModified {
		fmt.Fprintf(os.Stderr, "%s is up to date\n", res.Path)
	} else {
		fmt.Fprintf(os.Stderr, "Fetched %s (%d bytes)\n", res.Path, res.Bytes)
	}
	if fetchDigest && res.Digest != "" {
		return ledger.WriteDigest(ledger.Published{Path: res.Path, Bytes: res.Bytes, Digest: res.Digest})
	}
	return nil
}
