package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/flemzord/mcpflow/internal/agent"
	"github.com/flemzord/mcpflow/internal/runner"
	"github.com/flemzord/mcpflow/pkg/app"
)

func runCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <input...>",
		Short: "Run the agent once; tokens go to stdout, tool activity to stderr",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			rt, err := g.load()
			if err != nil {
				return err
			}
			defer closeRuntime(rt, &err)

			req := runner.Request{Input: strings.Join(args, " ")}
			req.SessionID, _ = cmd.Flags().GetString("session")
			req.SystemPrompt, _ = cmd.Flags().GetString("system")
			req.MaxIterations, _ = cmd.Flags().GetInt("max-iterations")
			if cmd.Flags().Changed("break-on-error") {
				b, _ := cmd.Flags().GetBool("break-on-error")
				req.BreakIfError = &b
			}
			asJSON, _ := cmd.Flags().GetBool("json")

			ctx, stop := app.SignalContext(cmd.Context())
			defer stop()

			var final *agent.Response
			out := &eventPrinter{stdout: cmd.OutOrStdout(), stderr: cmd.ErrOrStderr(), quiet: asJSON}
			for ev := range rt.Runner.Stream(ctx, req) {
				out.print(ev)
				if ev.Type.Terminal() {
					final = ev.Final
				}
			}
			if final == nil {
				return ctx.Err()
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(runOutput(*final)); err != nil {
					return err
				}
			}
			return final.Err
		},
	}
	cmd.Flags().String("session", "", "Session id whose history is loaded and extended")
	cmd.Flags().String("system", "", "System prompt for this run")
	cmd.Flags().Int("max-iterations", 0, "Override agent.max_iterations")
	cmd.Flags().Bool("break-on-error", false, "Fail the run after a round with a failed tool call")
	cmd.Flags().Bool("json", false, "Print the final response as JSON instead of streaming")
	return cmd
}

// eventPrinter renders stream events for a terminal.
type eventPrinter struct {
	stdout, stderr io.Writer
	quiet          bool
	midLine        bool
}

func (p *eventPrinter) print(ev agent.StreamEvent) {
	if p.quiet {
		return
	}
	switch ev.Type {
	case agent.StreamEventToken:
		fmt.Fprint(p.stdout, ev.Content)
		p.midLine = !strings.HasSuffix(ev.Content, "\n")
	case agent.StreamEventToolStarted:
		p.breakLine()
		fmt.Fprintf(p.stderr, "-> %s %s\n", ev.Call.Name, ev.Call.Arguments)
	case agent.StreamEventToolCompleted:
		status := "ok"
		if ev.Result.Failed() {
			status = "failed"
		} else if ev.Result.Cached {
			status = "cached"
		}
		fmt.Fprintf(p.stderr, "<- %s [%s, %s] %s\n", ev.Result.Name, status, ev.Result.Duration.Round(time.Millisecond), ev.Result.Outcome())
	case agent.StreamEventRunCompleted:
		p.breakLine()
		if ev.Final.StopReason == agent.StopReasonMaxIterations && ev.Final.Answer != "" {
			// The best-effort answer is synthesized after the last round and never streamed.
			fmt.Fprintln(p.stdout, ev.Final.Answer)
		}
		fmt.Fprintf(p.stderr, "run %s: %s after %d iteration(s)\n", ev.RunID, ev.Final.StopReason, ev.Final.Iterations)
	case agent.StreamEventRunFailed:
		p.breakLine()
		fmt.Fprintf(p.stderr, "run %s failed (%s): %v\n", ev.RunID, ev.Final.StopReason, ev.Err)
	}
}

func (p *eventPrinter) breakLine() {
	if p.midLine {
		fmt.Fprintln(p.stdout)
		p.midLine = false
	}
}

type runJSON struct {
	RunID      string        `json:"run_id"`
	Answer     string        `json:"answer"`
	State      string        `json:"state"`
	StopReason string        `json:"stop_reason"`
	Iterations int           `json:"iterations"`
	Tokens     int           `json:"tokens"`
	Error      string        `json:"error,omitempty"`
	Steps      []runner.Step `json:"steps"`
}

func runOutput(resp agent.Response) runJSON {
	out := runJSON{
		RunID:      resp.RunID,
		Answer:     resp.Answer,
		State:      string(resp.State),
		StopReason: string(resp.StopReason),
		Iterations: resp.Iterations,
		Tokens:     resp.Usage.TotalTokens,
		Steps:      runner.Steps(resp.Steps),
	}
	if resp.Err != nil {
		out.Error = resp.Err.Error()
	}
	return out
}
