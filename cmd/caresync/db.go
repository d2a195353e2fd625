package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/avellora/caresync/internal/config"
	"github.com/avellora/caresync/internal/db"
	"github.com/avellora/caresync/internal/models"
)

const defaultConfigPath = "caresync.yaml"

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBSeedCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the CareSync record cache",
		Long:  "Opens the configured database and migrates all tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s database\n", cfg.Database.Driver)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	fmt.Fprintln(out, "\nCareSync database initialized successfully.")
	return nil
}

func newDBSeedCmd() *cobra.Command {
	var (
		configPath string
		seedPath   string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed specialists from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBSeed(cmd, configPath, seedPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to CareSync config file")
	cmd.Flags().StringVar(&seedPath, "file", "specialists.yaml", "path to specialist seed file")
	return cmd
}

func runDBSeed(cmd *cobra.Command, configPath, seedPath string) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed struct {
		Specialists []models.Specialist `yaml:"specialists"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file %s: %w", seedPath, err)
	}
	if len(seed.Specialists) == 0 {
		return fmt.Errorf("seed file %s lists no specialists", seedPath)
	}

	if err := db.SeedSpecialists(gormDB, seed.Specialists); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d specialists:", len(seed.Specialists))
	for _, s := range seed.Specialists {
		fmt.Fprintf(out, " %s", s.Name)
	}
	fmt.Fprintln(out)
	return nil
}

// connectFromConfig loads config and returns a GORM DB connection.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	return cfg, gormDB, nil
}
