package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/psds-microservice/freshdesk-service/internal/application"
	"github.com/psds-microservice/freshdesk-service/internal/config"
	"github.com/spf13/cobra"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Print the new-ticket form schema as the widget receives it",
	RunE:  runFields,
}

func runFields(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	svc, err := application.NewTicketService(cfg, application.NewLogger(cfg))
	if err != nil {
		return fmt.Errorf("freshdesk: %w", err)
	}
	fields, err := svc.GetTicketFieldSchema(cmd.Context())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(fields)
}
