package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bibledownloader/internal/domain"
	"bibledownloader/internal/jobs"
	"bibledownloader/internal/pipeline"
)

func newDownloadCmd(a *app) *cobra.Command {
	var req jobs.CreateRequest
	cmd := &cobra.Command{
		Use:   "download <translation>",
		Short: "Download a translation and assemble its artifacts",
		Long: `Download every chapter of a translation. Chapters already on disk are
reused. Interrupting the command cancels the job after the running batch.

Modes: download-only, full (text), json, both.
Speeds: conservative, balanced, aggressive.

Examples:
  bibledl download KJV
  bibledl download asv --mode both --speed aggressive
  bibledl download NASB --agree`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.TranslationCode = args[0]
			return a.download(cmd.Context(), cmd.OutOrStdout(), req)
		},
	}
	cmd.Flags().StringVarP(&req.Mode, "mode", "m", "full", "processing mode")
	cmd.Flags().StringVarP(&req.Speed, "speed", "s", "balanced", "speed preference")
	cmd.Flags().BoolVar(&req.LegalAgreement, "agree", false, "accept the legal notice for copyrighted translations")
	return cmd
}

func (a *app) download(ctx context.Context, out io.Writer, req jobs.CreateRequest) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := append([]pipeline.Option{pipeline.WithRecoveryPause(a.cfg.RecoveryPause)}, a.runnerOpts...)
	runner := pipeline.NewRunner(a.newFetcher(a.cfg.FetchTimeout), a.files, a.logger, opts...)
	svc := jobs.NewService(a.catalog, runner, nil, a.logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.FetchTimeout+5*time.Second)
		defer cancel()
		_ = svc.Shutdown(shutdownCtx)
	}()

	snap, err := svc.CreateJob(ctx, req)
	if errors.Is(err, domain.ErrLegalAgreementRequired) {
		return fmt.Errorf("%w: read `bibledl disclaimer` and pass --agree", err)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Downloading %s (%s, %s) into %s\n", snap.Translation, snap.Mode, snap.Speed, a.files.BasePath())

	done := make(chan domain.JobSnapshot, 1)
	go func() {
		final, _ := svc.Wait(context.Background(), snap.ID)
		done <- final
	}()

	ticker := time.NewTicker(a.progress)
	defer ticker.Stop()
	interrupted := ctx.Done()
	var last string
	for {
		select {
		case final := <-done:
			printProgress(out, final.Progress, &last)
			return report(out, final)
		case <-interrupted:
			interrupted = nil
			fmt.Fprintln(out, "Cancelling after the current batch...")
			if err := svc.Cancel(snap.ID); err != nil && !errors.Is(err, domain.ErrAlreadyTerminal) {
				return err
			}
		case <-ticker.C:
			if cur, err := svc.Progress(snap.ID); err == nil {
				printProgress(out, cur.Progress, &last)
			}
		}
	}
}

// printProgress writes one line whenever the visible state changed.
func printProgress(out io.Writer, p domain.Progress, last *string) {
	line := fmt.Sprintf("[%3d%%] %d/%d %s", p.Percentage, p.CompletedChapters, p.TotalChapters, p.Message)
	if line == *last {
		return
	}
	*last = line
	fmt.Fprintln(out, line)
}

func report(out io.Writer, final domain.JobSnapshot) error {
	if n := len(final.Errors); n > 0 {
		fmt.Fprintf(out, "%d chapters reported errors:\n", n)
		for i, e := range final.Errors {
			if i == 10 {
				fmt.Fprintf(out, "  ... and %d more\n", n-i)
				break
			}
			if e.Book != "" {
				fmt.Fprintf(out, "  %s %d: %s\n", e.Book, e.Chapter, e.Message)
			} else {
				fmt.Fprintf(out, "  %s\n", e.Message)
			}
		}
	}
	switch final.Status {
	case domain.JobStatusFailed:
		return errors.New(final.Message)
	case domain.JobStatusCancelled:
		fmt.Fprintln(out, "Download cancelled. Run the same command again to resume.")
	default:
		fmt.Fprintln(out, final.Message)
	}
	return nil
}
