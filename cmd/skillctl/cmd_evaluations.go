package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"skillcert_backend/internal/portal"
)

var (
	listStatus   string
	evalScores   []string
	evalFeedback []string
	evalOverall  string
	evalShowOnly bool
)

var submissionsCmd = &cobra.Command{
	Use:   "submissions",
	Short: "Review submitted tests (admin)",
}

var submissionsListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List submissions waiting for grading",
	PreRunE: requireLogin,
	RunE:    runSubmissionsList,
}

var submissionsWatchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Print evaluation status changes as they happen",
	PreRunE: requireLogin,
	RunE:    runSubmissionsWatch,
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <submission-id>",
	Short: "Grade the practical part of a submission and complete it",
	Long: `Grade the practical part of a submission and complete it.

  skillctl evaluate 0b6c... --score 3=85 --feedback 3="clear structure" --overall "good work"

Scores must be between 0 and 100. Existing scores are kept unless overridden.
Use --show to print the submission without saving.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: requireLogin,
	RunE:    runEvaluate,
}

func init() {
	submissionsListCmd.Flags().StringVar(&listStatus, "status", "", "pending, in_progress or completed")
	evaluateCmd.Flags().StringArrayVar(&evalScores, "score", nil, "question=score, repeatable")
	evaluateCmd.Flags().StringArrayVar(&evalFeedback, "feedback", nil, "question=text, repeatable")
	evaluateCmd.Flags().StringVar(&evalOverall, "overall", "", "overall feedback")
	evaluateCmd.Flags().BoolVar(&evalShowOnly, "show", false, "print the submission and exit")

	submissionsCmd.AddCommand(submissionsListCmd, submissionsWatchCmd)
	rootCmd.AddCommand(submissionsCmd, evaluateCmd)
}

func runSubmissionsList(cmd *cobra.Command, args []string) error {
	list := portal.NewSubmissionList(newClient())
	list.Status = listStatus
	if err := list.Load(cmd.Context()); err != nil {
		return err
	}
	if len(list.Rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No submissions.")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLEARNER\tSKILL\tSUBMITTED\tSTATUS\tSCORE\t")
	for _, r := range list.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Learner, r.Skill, r.SubmittedAt.Format("2006-01-02 15:04"), r.Badge, r.Score, r.Action)
	}
	return w.Flush()
}

func runSubmissionsWatch(cmd *cobra.Command, args []string) error {
	events, err := newClient().WatchEvaluations(cmd.Context())
	if err != nil {
		return err
	}
	for ev := range events {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s  passed=%t\n",
			ev.At.Format("15:04:05"), ev.SubmissionID, portal.StatusBadge(ev.EvaluationStatus), ev.Passed)
	}
	return nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	editor := portal.NewEvaluationEditor(newClient())
	if err := editor.Open(ctx, args[0]); err != nil {
		if editor.NotFound {
			return fmt.Errorf("submission %s not found", args[0])
		}
		return err
	}

	if evalShowOnly {
		printSubmission(cmd, editor)
		return nil
	}

	for _, s := range evalScores {
		qid, raw, err := parsePair(s)
		if err != nil {
			return err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%q: score is not a number", s)
		}
		if err := editor.SetScore(qid, v); err != nil {
			return err
		}
	}
	for _, f := range evalFeedback {
		qid, text, err := parsePair(f)
		if err != nil {
			return err
		}
		if err := editor.SetFeedback(qid, text); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("overall") {
		editor.Overall = evalOverall
	}

	if _, err := editor.Save(ctx); err != nil {
		return err
	}
	sub := editor.Submission
	fmt.Fprintf(cmd.OutOrStdout(), "Submission %s is %s, passed=%t\n", sub.ID, portal.StatusBadge(sub.EvaluationStatus), sub.Passed)
	return nil
}

func printSubmission(cmd *cobra.Command, e *portal.EvaluationEditor) {
	out := cmd.OutOrStdout()
	s := e.Submission
	fmt.Fprintf(out, "%s  %s  multiple choice %d  %s\n", s.ID, s.Skill, s.Score, portal.StatusBadge(s.EvaluationStatus))
	for _, it := range e.Items {
		fmt.Fprintf(out, "\n[%d] %s\n", it.QuestionID, it.Prompt)
		for _, f := range it.Files {
			fmt.Fprintf(out, "    file: %s\n", f)
		}
		if it.RecordingURL != "" {
			fmt.Fprintf(out, "    recording: %s\n", it.RecordingURL)
		}
		if v, ok := e.Scores[it.QuestionID]; ok {
			fmt.Fprintf(out, "    score: %g\n", v)
		}
		if fb := e.Feedback[it.QuestionID]; fb != "" {
			fmt.Fprintf(out, "    feedback: %s\n", fb)
		}
	}
	if e.Overall != "" {
		fmt.Fprintf(out, "\noverall: %s\n", e.Overall)
	}
}
