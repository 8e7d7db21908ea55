package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"animesync/internal/catalog"
	"animesync/internal/config"
	"animesync/internal/docstore"
	"animesync/internal/notifications"
	"animesync/internal/textutil"
)

const emptyListingMessage = "No data found."

func newShowCommand(ctx *commandContext) *cobra.Command {
	var (
		asTable bool
		asJSON  bool
		send    bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the published catalog",
		Long: "Fetches the published document without credentials and lists every entry.\n" +
			"With --send the listing is delivered to ntfy in chunks.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			entries, err := loadPublished(cmd, cfg)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, entries)
			}

			out := cmd.OutOrStdout()
			if asTable && len(entries) > 0 {
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Name", "ID", "Cloud", "Type", "Score"},
					listingRows(entries),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
			}

			chunks := textutil.Chunk(formatListing(entries), cfg.Display.ChunkSize)
			if !asTable || len(entries) == 0 {
				for _, chunk := range chunks {
					fmt.Fprint(out, chunk)
				}
				fmt.Fprintln(out)
			}

			if send {
				return sendListing(cmd, cfg, chunks)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asTable, "table", false, "Render entries as a table")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	cmd.Flags().BoolVar(&send, "send", false, "Deliver the listing to the configured ntfy topic")
	return cmd
}

// loadPublished reads the document from the raw content host. A missing
// document is reported as an empty catalog.
func loadPublished(cmd *cobra.Command, cfg *config.Config) ([]catalog.Entry, error) {
	client := docstore.NewClient(docstore.SettingsFromConfig(cfg))
	raw, err := client.ReadRaw(cmd.Context())
	if errors.Is(err, docstore.ErrNotFound) {
		return []catalog.Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch published data: %w", err)
	}
	entries, err := catalog.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode published data: %w", err)
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}
	return entries, nil
}

// formatListing renders the numbered listing. An empty catalog renders as a
// single notice.
func formatListing(entries []catalog.Entry) string {
	if len(entries) == 0 {
		return emptyListingMessage
	}
	var b strings.Builder
	b.WriteString("Current Anime Data:\n")
	for i, entry := range entries {
		fmt.Fprintf(&b, "%d. %s (ID: %s)\n", i+1, entry.Name, entry.ID)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func listingRows(entries []catalog.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for i, entry := range entries {
		score := "-"
		if entry.Score != nil {
			score = strconv.FormatFloat(*entry.Score, 'f', -1, 64)
		}
		kind := entry.Type
		if kind == "" {
			kind = "-"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), entry.Name, entry.ID, entry.Cloud, kind, score})
	}
	return rows
}

func sendListing(cmd *cobra.Command, cfg *config.Config, chunks []string) error {
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return errors.New("notifications.ntfy_topic is not set; nothing to send the listing to")
	}
	notifier := notifications.NewService(cfg, nil)
	for i, chunk := range chunks {
		if err := notifier.NotifyListingChunk(cmd.Context(), i+1, len(chunks), chunk); err != nil {
			return fmt.Errorf("send listing part %d of %d: %w", i+1, len(chunks), err)
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Sent listing in %d part(s)\n", len(chunks))
	return nil
}
