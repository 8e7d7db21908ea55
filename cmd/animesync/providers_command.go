package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"animesync/internal/providers"
)

type providerJSON struct {
	Provider string `json:"provider"`
	Host     string `json:"host,omitempty"`
	Key      string `json:"key,omitempty"`
	Status   string `json:"status"`
}

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List configured hosting providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var summary []providerJSON
			for _, endpoint := range cfg.ProviderEndpoints() {
				entry := providerJSON{Provider: endpoint.Provider.String()}
				switch raw := strings.TrimSpace(endpoint.URL); {
				case raw == "":
					entry.Status = "missing (set " + endpoint.Env + ")"
				default:
					if parsed, err := url.Parse(raw); err == nil {
						entry.Host = parsed.Host
					}
					key, err := providers.AccessKey(raw)
					if err != nil {
						entry.Status = "no access key"
					} else {
						entry.Key = providers.MaskKey(key)
						entry.Status = "ready"
					}
				}
				summary = append(summary, entry)
			}

			if asJSON {
				return writeJSON(cmd, summary)
			}
			rows := make([][]string, 0, len(summary))
			for _, entry := range summary {
				rows = append(rows, []string{entry.Provider, dashIfEmpty(entry.Host), dashIfEmpty(entry.Key), entry.Status})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Provider", "Host", "Key", "Status"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print providers as JSON")
	return cmd
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
