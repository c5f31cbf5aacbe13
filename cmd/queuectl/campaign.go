package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/webramesh/email-marketing-sub000/internal/config"
)

var (
	campaignCmd = &cobra.Command{
		Use:   "campaign",
		Short: "Campaign send operations",
	}

	campaignResumeCmd = &cobra.Command{
		Use:   "resume [campaign-id]",
		Short: "Re-enqueue a failed or stalled campaign from its last recorded offset",
		Args:  cobra.ExactArgs(1),
		RunE:  resumeCampaign,
	}

	campaignStatusCmd = &cobra.Command{
		Use:   "status [campaign-id]",
		Short: "Show campaign progress and counters",
		Args:  cobra.ExactArgs(1),
		RunE:  campaignStatus,
	}

	tenantID  uint
	batchSize int
)

func init() {
	campaignCmd.PersistentFlags().UintVarP(&tenantID, "tenant", "t", 0, "Tenant owning the campaign")
	campaignCmd.MarkPersistentFlagRequired("tenant")
	campaignResumeCmd.Flags().IntVarP(&batchSize, "batch", "b", config.DefaultCampaignBatchSize, "Subscribers per batch")

	campaignCmd.AddCommand(campaignResumeCmd, campaignStatusCmd)
}

func parseID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return uint(id), nil
}

func resumeCampaign(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	offset, err := env.CampaignService().Resume(cmd.Context(), tenantID, id, batchSize)
	if err != nil {
		return fmt.Errorf("failed to resume campaign %d: %w", id, err)
	}
	fmt.Printf("Campaign %d resumed at offset %d\n", id, offset)
	return nil
}

func campaignStatus(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	st, err := env.CampaignService().Status(cmd.Context(), tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to read campaign %d: %w", id, err)
	}

	if ok, err := printJSON(st); ok {
		return err
	}
	fmt.Printf("Campaign %d: %s (next offset %d, %d active subscribers)\n", st.ID, st.Status, st.NextOffset, st.Audience)
	if st.FailureReason != "" {
		fmt.Printf("  failure: %s\n", st.FailureReason)
	}
	fmt.Printf("  sent %d, delivered %d, opened %d, clicked %d, bounced %d, complained %d, unsubscribed %d\n",
		st.Sent, st.Delivered, st.Opened, st.Clicked, st.Bounced, st.Complained, st.Unsubscribed)
	return nil
}
