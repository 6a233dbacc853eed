package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/folio/internal/content"
	"github.com/KaramelBytes/folio/internal/utils"
)

var (
	listLocale string
	listTag    string
	listJSON   bool
)

type listedPost struct {
	Slug           string   `json:"slug"`
	Title          string   `json:"title"`
	Date           string   `json:"date"`
	Tags           []string `json:"tags"`
	Excerpt        string   `json:"excerpt,omitempty"`
	Draft          bool     `json:"draft,omitempty"`
	ReadingMinutes int      `json:"reading_minutes"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List posts of a locale, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		loc, err := resolveLocale(c, listLocale)
		if err != nil {
			return err
		}
		store := newStore(c, newLogger(c))
		var docs []content.Document
		if listTag != "" {
			docs = store.ByTag(loc, listTag)
		} else {
			docs = store.List(loc)
		}

		out := cmd.OutOrStdout()
		if listJSON {
			posts := make([]listedPost, 0, len(docs))
			for _, d := range docs {
				posts = append(posts, listedPost{
					Slug: d.Slug, Title: d.Title, Date: d.DateString(), Tags: d.Tags,
					Excerpt: d.Excerpt, Draft: d.Draft, ReadingMinutes: d.ReadingMinutes,
				})
			}
			b, err := utils.PrettyJSON(posts)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		if len(docs) == 0 {
			fmt.Fprintln(out, "(no posts)")
			return nil
		}
		for _, d := range docs {
			line := fmt.Sprintf("%s  %-24s %s", d.DateString(), d.Slug, d.Title)
			if len(d.Tags) > 0 {
				line += " [" + strings.Join(d.Tags, ", ") + "]"
			}
			if d.Draft {
				line += " (draft)"
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

var showLocale string
var showHTML bool

var showCmd = &cobra.Command{
	Use:   "show <slug>",
	Short: "Show a post with its table of contents and neighbors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		loc, err := resolveLocale(c, showLocale)
		if err != nil {
			return err
		}
		store := newStore(c, newLogger(c))
		slug := args[0]
		d, ok := store.Get(loc, slug)
		if !ok {
			return fmt.Errorf("post %q not found in locale %s", slug, loc)
		}
		body, err := d.LoadBody()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if showHTML {
			html, err := content.NewRenderer().Render(body)
			if err != nil {
				return err
			}
			fmt.Fprint(out, html)
			return nil
		}
		fmt.Fprintf(out, "Title:    %s\n", d.Title)
		fmt.Fprintf(out, "Slug:     %s (%s)\n", d.Slug, d.Locale)
		fmt.Fprintf(out, "Date:     %s\n", d.DateString())
		if d.Excerpt != "" {
			fmt.Fprintf(out, "Excerpt:  %s\n", d.Excerpt)
		}
		if len(d.Tags) > 0 {
			fmt.Fprintf(out, "Tags:     %s\n", strings.Join(d.Tags, ", "))
		}
		if d.Cover != "" {
			fmt.Fprintf(out, "Cover:    %s\n", d.Cover)
		}
		fmt.Fprintf(out, "Reading:  %d min\n", d.ReadingMinutes)
		if alt := store.Alternates(loc, slug); len(alt) > 0 {
			fmt.Fprintf(out, "Also in:  %s\n", strings.Join(alt, ", "))
		}
		n := store.Neighbors(loc, slug)
		if n.Prev != nil {
			fmt.Fprintf(out, "Previous: %s (%s)\n", n.Prev.Title, n.Prev.Slug)
		}
		if n.Next != nil {
			fmt.Fprintf(out, "Next:     %s (%s)\n", n.Next.Title, n.Next.Slug)
		}
		if toc := content.ExtractToc(body); len(toc) > 0 {
			fmt.Fprintln(out, "Contents:")
			printToc(cmd, toc)
		}
		return nil
	},
}

var tagsLocale string

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Show the tag index of a locale",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		loc, err := resolveLocale(c, tagsLocale)
		if err != nil {
			return err
		}
		tags := newStore(c, newLogger(c)).Tags(loc)
		out := cmd.OutOrStdout()
		if len(tags) == 0 {
			fmt.Fprintln(out, "(no tags)")
			return nil
		}
		for _, t := range tags {
			fmt.Fprintf(out, "%4d  %s\n", t.Count, t.Tag)
		}
		return nil
	},
}

var tocCmd = &cobra.Command{
	Use:   "toc <file>",
	Short: "Print the table of contents of a markdown file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := content.ReadBody(args[0])
		if err != nil {
			return err
		}
		toc := content.ExtractToc(body)
		if len(toc) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "(no headings)")
			return nil
		}
		printToc(cmd, toc)
		return nil
	},
}

func printToc(cmd *cobra.Command, toc []content.TocEntry) {
	for _, e := range toc {
		indent := "  "
		if e.Depth == 3 {
			indent = "    "
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s- %s #%s\n", indent, e.Text, e.ID)
	}
}

func init() {
	rootCmd.AddCommand(listCmd, showCmd, tagsCmd, tocCmd)
	listCmd.Flags().StringVarP(&listLocale, "locale", "l", "", "locale (default is default_locale)")
	listCmd.Flags().StringVarP(&listTag, "tag", "t", "", "only posts carrying this tag")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")
	showCmd.Flags().StringVarP(&showLocale, "locale", "l", "", "locale (default is default_locale)")
	showCmd.Flags().BoolVar(&showHTML, "html", false, "print the rendered HTML body")
	tagsCmd.Flags().StringVarP(&tagsLocale, "locale", "l", "", "locale (default is default_locale)")
}
