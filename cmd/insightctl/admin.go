package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"retail-insights/internal/auth"
	"retail-insights/internal/reporting"
)

func newDashboardsCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboards",
		Short: "List the available dashboards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newReportPrinter(cmd.OutOrStdout(), v.GetBool("no-color"))
			t := p.table()
			t.AppendHeader(table.Row{"Slug", "Title", "KPIs", "Charts"})
			for _, d := range reporting.Dashboards() {
				t.AppendRow(table.Row{d.Slug, d.Title, len(d.KPIs), len(d.Charts)})
			}
			t.Render()
			return nil
		},
	}
}

func newHashPasswordCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the bcrypt hash of a password read from stdin",
		Long: `Read one password line from stdin and print its bcrypt hash, ready to
paste under "users:" in the credentials file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return errors.New("empty password")
			}

			hash, err := auth.HashPassword(password, v.GetInt("cost"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().Int("cost", 0, "bcrypt cost (default 10)")
	return cmd
}
