package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/avellora/caresync/internal/models"
	"github.com/avellora/caresync/internal/specialists"
)

func newSpecialistsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "specialists",
		Short: "Discover care specialists",
	}

	cmd.AddCommand(newSpecListCmd())
	cmd.AddCommand(newSpecSearchCmd())
	cmd.AddCommand(newSpecTopCmd())
	return cmd
}

func newSpecListCmd() *cobra.Command {
	var (
		configPath string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List specialists accepting appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			specs, err := specialists.List(gormDB, !all)
			if err != nil {
				return err
			}
			printSpecialists(cmd, specs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	cmd.Flags().BoolVar(&all, "all", false, "include specialists not accepting appointments")
	return cmd
}

func newSpecSearchCmd() *cobra.Command {
	var (
		configPath string
		specialty  string
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search specialists by specialty, name or bio",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			if specialty == "" && query == "" {
				return fmt.Errorf("give a query or --specialty")
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			specs, err := specialists.Search(gormDB, specialty, query)
			if err != nil {
				return err
			}
			printSpecialists(cmd, specs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	cmd.Flags().StringVar(&specialty, "specialty", "", "filter by specialty")
	return cmd
}

func newSpecTopCmd() *cobra.Command {
	var (
		configPath string
		n          int
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the highest rated available specialists",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			specs, err := specialists.TopRated(gormDB, n)
			if err != nil {
				return err
			}
			printSpecialists(cmd, specs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	cmd.Flags().IntVarP(&n, "count", "n", 5, "how many to show")
	return cmd
}

func printSpecialists(cmd *cobra.Command, specs []models.Specialist) {
	out := cmd.OutOrStdout()
	if len(specs) == 0 {
		fmt.Fprintln(out, "No specialists found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSPECIALTY\tRATING\tACCEPTING\tBIO")
	for _, s := range specs {
		accepting := "yes"
		if !s.Available {
			accepting = "no"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%s\t%s\n",
			s.ID, s.Name, s.Specialty, s.Rating, accepting, truncate(s.Bio, 50))
	}
	w.Flush()
}

// truncate shortens a string for table display.
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
