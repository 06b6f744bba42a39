package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bibledownloader/internal/catalog"
	"bibledownloader/internal/domain"
	"bibledownloader/internal/fetch"
	"bibledownloader/internal/scan"
)

// resolve looks up a translation together with its source descriptor.
func (a *app) resolve(code string) (domain.Translation, domain.Source, error) {
	t, err := a.catalog.Lookup(code)
	if err != nil {
		return domain.Translation{}, domain.Source{}, err
	}
	src, ok := a.catalog.Source(t.Source)
	if !ok {
		return domain.Translation{}, domain.Source{}, fetch.ConfigurationError("unknown source: %s", t.Source)
	}
	return t, src, nil
}

func newScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <translation>",
		Short: "Check downloaded chapters and delete invalid ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, src, err := a.resolve(args[0])
			if err != nil {
				return err
			}
			books := catalog.BooksFor(t)
			res := scan.NewScanner(a.files, a.logger).Scan(cmd.Context(), t.Code, books, src.Payload)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d chapters\n", t.Code, catalog.TotalChapters(books))
			fmt.Fprintf(out, "  valid:   %d\n", res.Valid)
			fmt.Fprintf(out, "  invalid: %d (deleted)\n", res.Invalid)
			fmt.Fprintf(out, "  missing: %d\n", res.Missing)
			return nil
		},
	}
}
