package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	statusOwner  string
	statusServer string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show an ingestion job from a running server",
	Long:  "Queries a reorder-cli serve instance for a job's state, either by id or the owner's latest job. Jobs older than the retention window are evicted and report not found.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base := statusServer
		if base == "" {
			base = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
		}

		var endpoint string
		switch {
		case len(args) == 1:
			endpoint = base + "/jobs/" + url.PathEscape(args[0])
		case statusOwner != "":
			endpoint = base + "/jobs/latest?owner=" + url.QueryEscape(statusOwner)
		default:
			return eris.New("pass a job id or --owner")
		}

		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Get(endpoint)
		if err != nil {
			return eris.Wrap(err, "query server")
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "read response")
		}
		if resp.StatusCode == http.StatusNotFound {
			return eris.New("job not found (evicted or unknown)")
		}
		if resp.StatusCode != http.StatusOK {
			return eris.Errorf("server returned %d: %s", resp.StatusCode, body)
		}

		fmt.Fprintln(os.Stdout, string(body))
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusOwner, "owner", "", "show the owner's latest job")
	statusCmd.Flags().StringVar(&statusServer, "server", "", "server base URL (default http://localhost:<server.port>)")
	rootCmd.AddCommand(statusCmd)
}
