package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/leveledu/pkg/audit"
	"github.com/dmitrymomot/leveledu/pkg/config"
	mongodb "github.com/dmitrymomot/leveledu/pkg/mongo"
	"github.com/dmitrymomot/leveledu/pkg/validator"
	"github.com/dmitrymomot/leveledu/svc/auth"
)

func newCreateSuperAdminCmd() *cobra.Command {
	var in auth.CreateSuperAdminInput
	cmd := &cobra.Command{
		Use:   "create-super-admin",
		Short: "Create a platform super-admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validator.New().Validate(in); err != nil {
				return err
			}
			return createSuperAdmin(cmd, in)
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password (8 to 72 characters)")
	for _, f := range []string{"email", "name", "password"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func createSuperAdmin(cmd *cobra.Command, in auth.CreateSuperAdminInput) error {
	ctx := cmd.Context()
	app, err := loadAppConfig()
	if err != nil {
		return err
	}
	log := newLogger(app)

	var mcfg mongodb.Config
	if err := config.Load(&mcfg); err != nil {
		return err
	}
	client, err := mongodb.New(ctx, mcfg)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	db := client.Database(mcfg.Database)
	if err := mongodb.EnsureIndexes(ctx, db, auth.Indexes(), audit.Indexes()); err != nil {
		return err
	}

	svc := auth.NewService(auth.NewMongoRepository(db), nil, nil,
		auth.WithAudit(audit.NewLogger(audit.NewMongoStorage(db))),
		auth.WithLogger(log))
	u, err := svc.CreateSuperAdmin(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "super admin %s created (%s)\n", u.Email, u.ID.Hex())
	return nil
}
