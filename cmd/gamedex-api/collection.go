package main

import (
	"fmt"

	"github.com/rubberart7/GameDex-sub001/internal/games"
	"github.com/spf13/cobra"
)

func newCollectionCommand() *cobra.Command {
	collectionCmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage user game collections",
	}
	collectionCmd.AddCommand(newCollectionAddCommand())
	return collectionCmd
}

func newCollectionAddCommand() *cobra.Command {
	var (
		userID     string
		externalID int64
		kind       string
	)
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a catalog game to a user's library or wishlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			collectionKind, err := games.ParseCollectionKind(kind)
			if err != nil {
				return err
			}

			app, err := newApplication()
			if err != nil {
				return err
			}
			defer app.Close()

			service, err := games.NewService(games.ServiceConfig{
				Store:   app.gameStore,
				Catalog: app.catalog,
				Logger:  app.logger,
			})
			if err != nil {
				return err
			}

			result, err := service.AddToCollection(cmd.Context(), userID, externalID, collectionKind)
			if err != nil {
				return err
			}
			status := "added"
			if !result.ItemCreated {
				status = "already present"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %q (%d) %s as %s\n",
				userID, result.Game.Name, result.Game.ExternalID, status, result.Kind)
			return err
		},
	}
	addCmd.Flags().StringVar(&userID, "user", "", "User identifier")
	addCmd.Flags().Int64Var(&externalID, "external-id", 0, "Catalog identifier of the game")
	addCmd.Flags().StringVar(&kind, "kind", string(games.CollectionKindOwned), "owned or wishlisted")
	_ = addCmd.MarkFlagRequired("user")
	_ = addCmd.MarkFlagRequired("external-id")
	return addCmd
}
