package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"skillcert_backend/internal/portal"
	"skillcert_backend/pkg/client"
	"skillcert_backend/pkg/logger"
	"skillcert_backend/pkg/recorder"
)

var (
	takeAnswers []string
	takeFiles   []string
	takeRecord  uint
	takeDisplay string
	takeAudio   bool
)

var testsCmd = &cobra.Command{
	Use:   "tests",
	Short: "Browse and take skill tests",
}

var testsListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List published skill tests",
	PreRunE: requireLogin,
	RunE:    runTestsList,
}

var testsShowCmd = &cobra.Command{
	Use:     "show <test-id>",
	Short:   "Show the questions of a test",
	Args:    cobra.ExactArgs(1),
	PreRunE: requireLogin,
	RunE:    runTestsShow,
}

var testsTakeCmd = &cobra.Command{
	Use:   "take <test-id>",
	Short: "Answer a test and submit it",
	Long: `Answer a test and submit it for grading.

Multiple choice answers and practical files are given as question=value pairs:

  skillctl tests take 1 --answer 1=b --answer 2=a --file 3=./main.go --record 3

--record captures the screen while you work on the practical question and
stops when you press Enter.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: requireLogin,
	RunE:    runTestsTake,
}

func init() {
	testsTakeCmd.Flags().StringArrayVar(&takeAnswers, "answer", nil, "question=option, repeatable")
	testsTakeCmd.Flags().StringArrayVar(&takeFiles, "file", nil, "question=path, repeatable")
	testsTakeCmd.Flags().UintVar(&takeRecord, "record", 0, "record the screen for this practical question")
	testsTakeCmd.Flags().StringVar(&takeDisplay, "display", "", "screen to capture")
	testsTakeCmd.Flags().BoolVar(&takeAudio, "audio", false, "capture audio with the screen")

	testsCmd.AddCommand(testsListCmd, testsShowCmd, testsTakeCmd)
	rootCmd.AddCommand(testsCmd)
}

// parsePair splits "12=value" into its question id and value.
func parsePair(s string) (uint, string, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok {
		return 0, "", fmt.Errorf("%q: expected question=value", s)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(k), 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%q: bad question id", s)
	}
	return uint(id), v, nil
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}

func runTestsList(cmd *cobra.Command, args []string) error {
	tests, err := newClient().ListTests(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSKILL\tPASS\tMINUTES")
	for _, t := range tests {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n", t.ID, t.Title, t.Skill, t.PassScore, t.TimeLimit)
	}
	return w.Flush()
}

func runTestsShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	t, err := newClient().GetTest(cmd.Context(), id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s), pass score %d\n\n", t.Title, t.Skill, t.PassScore)
	for _, q := range t.Questions {
		fmt.Fprintf(out, "[%d] %s (%s, %d pts)\n", q.ID, q.Prompt, q.Kind, q.Points)
		for _, c := range q.Choices() {
			fmt.Fprintf(out, "      - %s\n", c)
		}
		if q.RequiresRecording {
			fmt.Fprintln(out, "      screen recording required")
		}
	}
	return nil
}

func runTestsTake(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	taker := portal.NewTestTaker(newClient())
	defer taker.Close()

	if err := taker.Load(ctx, id); err != nil {
		return err
	}
	for _, a := range takeAnswers {
		qid, opt, err := parsePair(a)
		if err != nil {
			return err
		}
		if err := taker.Answer(qid, opt); err != nil {
			return err
		}
	}
	for _, f := range takeFiles {
		qid, path, err := parsePair(f)
		if err != nil {
			return err
		}
		if err := taker.Attach(qid, client.FileFromPath(path)); err != nil {
			return err
		}
	}

	if takeRecord != 0 {
		src := recorder.NewFFmpegSource()
		rec := recorder.New(src, src, recorder.Options{Audio: takeAudio, Display: takeDisplay})
		rec.OnAutoStop = func(r *recorder.Recording, err error) {
			logger.Log.Warn("screen capture ended on its own", zap.Error(err))
		}
		if err := taker.StartRecording(ctx, takeRecord, rec); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Recording the screen. Press Enter to stop.")
		if err := waitForEnter(cmd.InOrStdin()); err != nil {
			taker.Close()
			return fmt.Errorf("recording discarded, nothing submitted: %w", err)
		}
		r, err := taker.StopRecording()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Recorded %s (%d bytes).\n", r.Duration.Round(time.Second), len(r.Data))
	}

	sub, err := taker.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s: score %d, status %s\n", sub.ID, sub.Score, sub.EvaluationStatus)
	return nil
}

// waitForEnter blocks until a newline arrives on in. A closed or non-interactive
// stdin is an error rather than an immediate stop.
func waitForEnter(in io.Reader) error {
	if _, err := bufio.NewReader(in).ReadString('\n'); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("stdin closed before Enter was pressed")
		}
		return fmt.Errorf("read stdin: %w", err)
	}
	return nil
}
