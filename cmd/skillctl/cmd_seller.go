package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"skillcert_backend/internal/portal"
)

var startEarningCmd = &cobra.Command{
	Use:     "start-earning",
	Short:   "Check your certifications and register as a seller",
	PreRunE: requireLogin,
	RunE:    runStartEarning,
}

func init() {
	rootCmd.AddCommand(startEarningCmd)
}

func runStartEarning(cmd *cobra.Command, args []string) error {
	if session.UserID == 0 {
		return fmt.Errorf("session has no user, log in again")
	}
	g := portal.NewCertificationGate(newClient(), 0)
	res, seller, err := g.Register(cmd.Context(), session.UserID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !res.Allowed() {
		fmt.Fprintln(out, res.Message)
		return nil
	}
	if seller != nil && seller.Certification != nil {
		fmt.Fprintf(out, "You are now a seller, certified in %s with %d.\n", seller.Certification.Skill, seller.Certification.Score)
		return nil
	}
	fmt.Fprintln(out, "You are now a seller.")
	return nil
}
