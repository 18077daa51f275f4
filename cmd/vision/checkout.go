package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hyperengineering/vision/internal/checkout"
	"github.com/hyperengineering/vision/internal/config"
	"github.com/hyperengineering/vision/internal/validation"
)

var (
	checkoutJSONOutput bool
	checkoutSearch     string
	checkoutName       string
	checkoutEmail      string
	checkoutDocument   string
	checkoutPhone      string
	checkoutCoupon     string
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Inspect offers and build checkout links",
}

var checkoutProductsCmd = &cobra.Command{
	Use:   "products",
	Short: "List products from the payment API",
	Args:  cobra.NoArgs,
	RunE:  runCheckoutProducts,
}

var checkoutOffersCmd = &cobra.Command{
	Use:   "offers",
	Short: "List offers from the payment API",
	Args:  cobra.NoArgs,
	RunE:  runCheckoutOffers,
}

var checkoutLinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Build a pre-filled checkout link",
	Args:  cobra.NoArgs,
	RunE:  runCheckoutLink,
}

func init() {
	checkoutCmd.PersistentFlags().BoolVar(&checkoutJSONOutput, "json", false, "Output in JSON format")

	checkoutOffersCmd.Flags().StringVar(&checkoutSearch, "search", "", "Filter offers by name")

	checkoutLinkCmd.Flags().StringVar(&checkoutName, "name", "", "Customer name")
	checkoutLinkCmd.Flags().StringVar(&checkoutEmail, "email", "", "Customer email")
	checkoutLinkCmd.Flags().StringVar(&checkoutDocument, "document", "", "Customer CPF (digits only)")
	checkoutLinkCmd.Flags().StringVar(&checkoutPhone, "phone", "", "Customer phone (digits only)")
	checkoutLinkCmd.Flags().StringVar(&checkoutCoupon, "coupon", "", "Coupon code")
	checkoutLinkCmd.MarkFlagRequired("email")

	checkoutCmd.AddCommand(checkoutProductsCmd)
	checkoutCmd.AddCommand(checkoutOffersCmd)
	checkoutCmd.AddCommand(checkoutLinkCmd)
}

func newCheckoutClient(cmd *cobra.Command) (*checkout.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return checkout.New(cfg.Checkout, checkout.WithLogger(cliLogger(cfg, cmd.ErrOrStderr()))), nil
}

func runCheckoutProducts(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := newCheckoutClient(cmd)
	if err != nil {
		return err
	}
	products, err := client.ListProducts(ctx)
	if err != nil {
		return err
	}

	if checkoutJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"products": products,
			"total":    len(products),
		})
	}
	if len(products) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No products found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTATUS")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\tR$ %s\t%s\n", p.ID, p.Name, humanize.CommafWithDigits(p.Price, 2), p.Status)
	}
	return w.Flush()
}

func runCheckoutOffers(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := newCheckoutClient(cmd)
	if err != nil {
		return err
	}
	offers, err := client.ListOffers(ctx, checkout.OfferQuery{Search: checkoutSearch})
	if err != nil {
		return err
	}

	if checkoutJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"offers": offers,
			"total":  len(offers),
		})
	}
	if len(offers) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No offers found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "REF\tNAME\tPRICE\tSTATUS")
	for _, o := range offers {
		fmt.Fprintf(w, "%s\t%s\tR$ %s\t%s\n", o.Ref(), o.Name, humanize.CommafWithDigits(o.Price, 2), o.Status)
	}
	return w.Flush()
}

func runCheckoutLink(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if errs := validation.ValidateCustomer(checkoutName, checkoutEmail, checkoutDocument, checkoutPhone); len(errs) > 0 {
		return fmt.Errorf("invalid customer: %s: %s", errs[0].Field, errs[0].Message)
	}

	client, err := newCheckoutClient(cmd)
	if err != nil {
		return err
	}
	co, err := client.CreateCheckout(ctx, checkout.Customer{
		Name:     checkoutName,
		Email:    checkoutEmail,
		Document: checkoutDocument,
		Phone:    checkoutPhone,
	}, checkoutCoupon)
	if err != nil {
		return err
	}

	if checkoutJSONOutput {
		return printJSON(cmd.OutOrStdout(), co)
	}
	fmt.Fprintln(cmd.OutOrStdout(), co.CheckoutURL)
	return nil
}
