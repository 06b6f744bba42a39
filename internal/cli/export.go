package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bibledownloader/internal/assemble"
	"bibledownloader/internal/catalog"
	"bibledownloader/internal/domain"
	"bibledownloader/internal/pipeline"
	"bibledownloader/internal/storage"
)

func newExportCmd(a *app) *cobra.Command {
	var rawMode string
	cmd := &cobra.Command{
		Use:   "export <translation>",
		Short: "Assemble artifacts from chapters already on disk",
		Long: `Assemble the .bible file and/or per-book JSON from downloaded chapters
without fetching anything. Missing chapters become placeholders.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := domain.ParseMode(rawMode)
			if err != nil {
				return err
			}
			if !mode.Converts() {
				return fmt.Errorf("%w: export needs full, json or both", domain.ErrInvalidMode)
			}
			t, src, err := a.resolve(args[0])
			if err != nil {
				return err
			}

			res, err := pipeline.Convert(cmd.Context(), a.files, t, src, catalog.BooksFor(t), mode, assemble.Options{
				OnProblem: func(p assemble.Problem) {
					a.logger.Debug().Err(p.Err).Str("book", p.Book.Code).Int("chapter", p.Chapter).Msg("placeholder chapter")
				},
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if mode.WantsText() {
				fmt.Fprintf(out, "Wrote %s\n", storage.BibleKey(t.ShortName))
			}
			if mode.WantsStructured() {
				fmt.Fprintf(out, "Wrote %s (%d books)\n", storage.JSONDir(t.Code), len(res.Books))
			}
			if res.Placeholders > 0 {
				fmt.Fprintf(out, "%d chapters could not be extracted and were left empty\n", res.Placeholders)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&rawMode, "mode", "m", "both", "artifacts to write: full, json or both")
	return cmd
}
