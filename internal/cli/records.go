package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/weiawesome/hybrid-relay/internal/domain"
	"github.com/weiawesome/hybrid-relay/internal/repository"
	"github.com/weiawesome/hybrid-relay/pkg/database"
)

// openDatabase connects and migrates, so record commands work on a fresh file.
func openDatabase(cfg database.Config) (*gorm.DB, error) {
	db, err := database.New(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := database.AutoMigrate(db, domain.Models()...); err != nil {
			database.Close(db)
			return nil, fmt.Errorf("failed to auto-migrate: %w", err)
		}
	}
	return db, nil
}

func newStreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Manage stream records",
	}

	var ownerID, title string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a scheduled stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)

			stream := &domain.Stream{OwnerID: ownerID, Title: title}
			if err := repository.NewGormStreamRepository(db).Create(cmd.Context(), stream); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stream.ID)
			return nil
		},
	}
	create.Flags().StringVar(&ownerID, "owner", "", "owner user id")
	create.Flags().StringVar(&title, "title", "", "stream title")
	_ = create.MarkFlagRequired("owner")

	end := &cobra.Command{
		Use:   "end <stream-id>",
		Short: "Mark a stream ended",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)

			return repository.NewGormStreamRepository(db).End(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(create, end)
	return cmd
}

func newCodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Manage code sessions",
	}

	var (
		ownerID, streamID, title, language string
		collaborators                     []string
		public                            bool
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a code session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)

			session := &domain.CodeSession{
				StreamID:      streamID,
				Title:         title,
				Language:      language,
				OwnerID:       ownerID,
				Collaborators: collaborators,
				IsPublic:      public,
			}
			if err := repository.NewGormCodeSessionRepository(db).Create(cmd.Context(), session); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), session.ID)
			return nil
		},
	}
	create.Flags().StringVar(&ownerID, "owner", "", "owner user id")
	create.Flags().StringVar(&streamID, "stream", "", "stream the session belongs to")
	create.Flags().StringVar(&title, "title", "", "session title")
	create.Flags().StringVar(&language, "language", "javascript", "editor language")
	create.Flags().StringSliceVar(&collaborators, "collaborator", nil, "collaborator user id (repeatable)")
	create.Flags().BoolVar(&public, "public", false, "allow anyone to view the session")
	_ = create.MarkFlagRequired("owner")

	versions := &cobra.Command{
		Use:   "versions <session-id>",
		Short: "List the saved versions of a code session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)

			list, err := repository.NewGormCodeSessionRepository(db).ListVersions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, v := range list {
				fmt.Fprintf(out, "%s\t%s\t%s\n", v.Version, v.UserID, v.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.AddCommand(create, versions)
	return cmd
}
