package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bibledownloader/internal/catalog"
	"bibledownloader/internal/domain"
)

func newListCmd(a *app) *cobra.Command {
	var publicDomain bool
	var lang string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured translations",
		Long: `List the translations of the catalogue.

Examples:
  bibledl list
  bibledl list --public-domain
  bibledl list --language nl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var list []domain.Translation
			if lang != "" {
				for _, t := range a.catalog.ByLanguage(lang) {
					if !publicDomain || t.IsPublicDomain {
						list = append(list, t)
					}
				}
			} else {
				list = a.catalog.List(publicDomain)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No translations found.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tLANGUAGE\tSOURCE\tCHAPTERS\tPUBLIC DOMAIN")
			for _, t := range list {
				pd := "no"
				if t.IsPublicDomain {
					pd = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					t.Code, t.FullName, t.Language, t.Source, catalog.TotalChapters(catalog.BooksFor(t)), pd)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&publicDomain, "public-domain", false, "only public domain translations")
	cmd.Flags().StringVarP(&lang, "language", "l", "", "filter by language code, e.g. en or nl")
	return cmd
}

func newDisclaimerCmd(a *app) *cobra.Command {
	var locale string
	cmd := &cobra.Command{
		Use:   "disclaimer",
		Short: "Show the legal notice for copyrighted translations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := a.catalog.Disclaimer(locale)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, d.Title)
			fmt.Fprintln(out)
			for _, line := range d.Content {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&locale, "lang", "en", "notice language (en or nl)")
	return cmd
}
