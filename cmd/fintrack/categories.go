package main

import (
	"fmt"

	"github.com/boddenberg/fintrack-go/internal/domain"
	"github.com/boddenberg/fintrack-go/internal/report"

	"github.com/spf13/cobra"
)

func newCategoriesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category", "cat"},
		Short:   "Manage categories",
	}
	cmd.AddCommand(
		newCategoriesListCmd(a),
		newCategoriesAddCmd(a),
		newCategoriesUpdateCmd(a),
		newCategoriesDeleteCmd(a),
	)
	return cmd
}

func newCategoriesListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			cats, err := a.client().ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			return report.Categories(cmd.OutOrStdout(), format, cats)
		},
	}
	addFormatFlag(cmd, a)
	return cmd
}

func categoryFlags(cmd *cobra.Command, in *domain.CategoryInput, typ *string) {
	cmd.Flags().StringVar(&in.Name, "name", "", "category name")
	cmd.Flags().StringVar(typ, "type", "", "income or expense")
	cmd.Flags().StringVar(&in.Color, "color", "", "#RRGGBB color (generated when empty)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
}

func newCategoriesAddCmd(a *app) *cobra.Command {
	var (
		in  domain.CategoryInput
		typ string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Type = domain.TransactionType(typ)
			cat, err := a.client().CreateCategory(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created category %s (%s)\n", cat.Name, cat.ID)
			return nil
		},
	}
	categoryFlags(cmd, &in, &typ)
	return cmd
}

func newCategoriesUpdateCmd(a *app) *cobra.Command {
	var (
		in  domain.CategoryInput
		typ string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename or recolor a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Type = domain.TransactionType(typ)
			cat, err := a.client().UpdateCategory(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated category %s (%s)\n", cat.Name, cat.ID)
			return nil
		},
	}
	categoryFlags(cmd, &in, &typ)
	return cmd
}

func newCategoriesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category with no transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().DeleteCategory(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted category %s\n", args[0])
			return nil
		},
	}
}
