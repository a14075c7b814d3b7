package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fittedhq/fitted-go/internal/wardrobe"
)

func closetCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "closet",
		Short: "Browse your closet",
	}
	cmd.AddCommand(closetListCmd(cfgPath))
	return cmd
}

func closetListCmd(cfgPath *string) *cobra.Command {
	var (
		page       int
		size       int
		searchText string
		itemType   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clothing items, one page at a time",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}

			req := wardrobe.SearchRequest{Page: page, MaxSize: size}
			if searchText != "" {
				req.Search = &wardrobe.Search{SearchText: searchText}
			}
			if itemType != "" {
				req.Filter = &wardrobe.Filter{FilterItems: []wardrobe.FilterItem{
					{Attribute: "type", Value: strings.ToUpper(itemType)},
				}}
			}

			result, err := a.wardrobe.SearchClothingItems(cmd.Context(), req)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tCOLOR")
			for _, item := range result.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", item.ID, item.Name, item.Type, item.Color)
			}
			w.Flush()

			fmt.Printf("\nPage %d, %d of %d items", page, len(result.Items), result.TotalCount)
			if result.HasNext {
				fmt.Printf(" (more with --page %d)", page+1)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 0, "zero-based page number")
	cmd.Flags().IntVar(&size, "size", 20, "items per page")
	cmd.Flags().StringVar(&searchText, "search", "", "free-text search")
	cmd.Flags().StringVar(&itemType, "type", "", "filter by clothing type (top, bottom, shoes, accessory, dress, outerwear)")

	return cmd
}

func outfitsCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outfits",
		Short: "Browse your saved outfits",
	}
	cmd.AddCommand(outfitsListCmd(cfgPath))
	return cmd
}

func outfitsListCmd(cfgPath *string) *cobra.Command {
	var (
		page int
		size int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List outfits, one page at a time",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}

			result, err := a.wardrobe.SearchOutfits(cmd.Context(), wardrobe.SearchRequest{
				Page:    page,
				MaxSize: size,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tITEMS\tTAGS\tCREATED")
			for _, outfit := range result.Items {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
					outfit.ID, len(outfit.ClothingItems), strings.Join(outfit.Tags, ","), outfit.CreatedAt)
			}
			w.Flush()

			fmt.Printf("\nPage %d, %d of %d outfits", page, len(result.Items), result.TotalCount)
			if result.HasNext {
				fmt.Printf(" (more with --page %d)", page+1)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 0, "zero-based page number")
	cmd.Flags().IntVar(&size, "size", 20, "outfits per page")

	return cmd
}
