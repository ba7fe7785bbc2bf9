package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aiodash/aiodash/internal/logging"
	"github.com/aiodash/aiodash/pkg/protocol"
	"github.com/aiodash/aiodash/pkg/query"
	"github.com/aiodash/aiodash/pkg/validate"
)

func (a *app) logsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Upload server logs and read crawler reports",
	}

	var (
		form       validate.LogUploadForm
		uploadWait bool
	)
	upload := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a server access log for processing",
		Args:  cobra.ExactArgs(1),
	}
	upload.Flags().StringVar(&form.BrandID, "brand", "", "brand ID the log belongs to")
	upload.Flags().StringVar(&form.Format, "format", "nginx", "log format: nginx, apache, cloudflare, aws-alb, custom")
	upload.Flags().StringVar(&form.Timezone, "timezone", "", "timezone of the log timestamps (default UTC)")
	upload.Flags().BoolVar(&uploadWait, "wait", false, "wait until processing finishes")
	upload.RunE = a.guarded("log-analysis", func(cmd *cobra.Command, args []string) error {
		form.Filename = filepath.Base(args[0])
		if err := form.Validate(); err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}
		form.Size = info.Size()

		accepted, err := a.svc.UploadServerLog(cmd.Context(), form, f)
		if err != nil {
			return failed(err, "Upload failed")
		}
		if !uploadWait {
			a.hint("Processing started. Check with 'dashboard logs status %s'.", accepted.UploadID)
			return a.render(accepted, keyValues(
				"Upload ID", accepted.UploadID,
				"Status", orDash(accepted.Status),
				"Message", orDash(accepted.Message),
			))
		}
		u, err := a.waitUpload(cmd.Context(), accepted.UploadID)
		if err != nil {
			return err
		}
		return a.showUpload(u)
	})

	var statusWait bool
	status := &cobra.Command{
		Use:   "status ID",
		Short: "Show the processing state of an upload",
		Args:  cobra.ExactArgs(1),
	}
	status.Flags().BoolVar(&statusWait, "wait", false, "wait until processing finishes")
	status.RunE = a.guarded("log-analysis", func(cmd *cobra.Command, args []string) error {
		if statusWait {
			u, err := a.waitUpload(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.showUpload(u)
		}
		u, err := a.svc.UploadStatus(cmd.Context(), args[0])
		if err != nil {
			return failed(err, "Could not check upload status")
		}
		return a.showUpload(u)
	})

	var analysisDays int
	analysis := &cobra.Command{
		Use:   "analysis BRAND_ID",
		Short: "Show the server log report for a brand",
		Args:  cobra.ExactArgs(1),
	}
	analysis.Flags().IntVar(&analysisDays, "days", 30, "report period in days")
	analysis.RunE = a.guarded("log-analysis", func(cmd *cobra.Command, args []string) error {
		doc, err := a.svc.LogAnalysis(cmd.Context(), args[0], analysisDays)
		if err != nil {
			return failed(err, "Could not load the log report")
		}
		return a.render(doc, nil)
	})

	var (
		botDays     int
		botPlatform string
	)
	bots := &cobra.Command{
		Use:   "bot-activity BRAND_ID",
		Short: "Show AI crawler activity for a brand",
		Args:  cobra.ExactArgs(1),
	}
	bots.Flags().IntVar(&botDays, "days", 7, "report period in days")
	bots.Flags().StringVar(&botPlatform, "platform", "", "only this AI platform")
	bots.RunE = a.guarded("log-analysis", func(cmd *cobra.Command, args []string) error {
		act, err := a.svc.BotActivity(cmd.Context(), args[0], botDays, botPlatform)
		if err != nil {
			return failed(err, "Could not load bot activity")
		}
		return a.render(act, func() rows {
			r := rows{headers: []string{"Platform", "Visits", "Brand mentions", "Citation rate", "Success rate"}}
			platforms := make([]string, 0, len(act.PlatformBreakdown))
			for p := range act.PlatformBreakdown {
				platforms = append(platforms, p)
			}
			sort.Strings(platforms)
			for _, p := range platforms {
				pa := act.PlatformBreakdown[p]
				r.add(p, itoa(pa.TotalVisits), itoa(pa.BrandMentions), ftoa(pa.CitationRate), ftoa(pa.SuccessRate))
			}
			return r
		})
	})

	var sampleFormat string
	sample := &cobra.Command{
		Use:   "sample FILE",
		Short: "Analyze a few log lines without storing them (FILE - reads stdin)",
		Args:  cobra.ExactArgs(1),
	}
	sample.Flags().StringVar(&sampleFormat, "format", "nginx", "log format")
	sample.RunE = a.guarded("log-analysis", func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(a.stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return err
		}
		doc, err := a.svc.AnalyzeSample(cmd.Context(), validate.SampleLogForm{Sample: string(data), Format: sampleFormat})
		if err != nil {
			return failed(err, "Sample analysis failed")
		}
		return a.render(doc, nil)
	})

	cmd.AddCommand(upload, status, analysis, bots, sample)
	return cmd
}

type uploadUpdate struct {
	upload *protocol.ServerLogUpload
	err    error
}

// waitUpload follows an upload until it completes or fails. A failed upload
// is returned as an error.
func (a *app) waitUpload(ctx context.Context, id string) (*protocol.ServerLogUpload, error) {
	updates := make(chan uploadUpdate, 4)
	done := make(chan struct{})
	defer close(done)

	sub := a.svc.WatchUploadStatus(id, func(u *protocol.ServerLogUpload, r query.Result) {
		select {
		case updates <- uploadUpdate{upload: u, err: r.Err}:
		case <-done:
		}
	})
	defer sub.Close()

	last := ""
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case up := <-updates:
			if up.upload == nil {
				if up.err == nil {
					continue
				}
				return nil, failed(up.err, "Could not check upload status")
			}
			if up.err != nil {
				a.log.Debug("upload status refetch failed", logging.UploadID(id), zap.Error(up.err))
			}
			u := up.upload
			if !u.Terminal() {
				if u.Status != last {
					a.hint("Upload %s is %s...", id, u.Status)
					last = u.Status
				}
				continue
			}
			if u.Status == protocol.StatusFailed {
				return u, fmt.Errorf("upload %s failed: %s", id, orDash(u.Error))
			}
			return u, nil
		}
	}
}

func (a *app) showUpload(u *protocol.ServerLogUpload) error {
	return a.render(u, keyValues(
		"Upload ID", u.ID,
		"File", u.Filename,
		"Format", u.FileFormat,
		"Size (MB)", ftoa(u.FileSizeMB),
		"Status", u.Status,
		"Requests", itoa(u.TotalRequests),
		"Bot requests", itoa(u.BotRequests),
		"Unique bots", itoa(u.UniqueBots),
		"Error", orDash(u.Error),
	))
}
