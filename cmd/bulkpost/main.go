// Command bulkpost drives a batch of HTTP POSTs through the adaptive
// rate-limited runner. It reads newline-delimited JSON request bodies
// from a file (or stdin), POSTs each to the target URL with bounded
// concurrency, adapts its request rate to observed 429s, and writes
// the response bodies to stdout in input order. Items that permanently
// fail are emitted as null. Interrupt stops the run gracefully:
// in-flight requests finish and the remaining slots are filled.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adamwoolhether/bulker/runner"
	"github.com/adamwoolhether/bulker/runner/bucket"
	"github.com/adamwoolhether/bulker/runner/limit"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulkpost [input-file]",
		Short: "Bulk HTTP POST driver with adaptive backpressure",
		Args:  cobra.MaximumNArgs(1),
		RunE:  run,
	}

	flags := cmd.Flags()
	flags.StringP("config", "c", "", "config file")
	flags.String("url", "", "target URL (required)")
	flags.Int("concurrency", 8, "worker pool size")
	flags.Int("max-retries", 2, "retries per item beyond the first attempt")
	flags.Bool("exit-on-error", false, "abort the run after the first permanently failed item")
	flags.Duration("timeout", 2*time.Minute, "per-request timeout")
	flags.Float64("initial-rate", 5, "starting requests per second")
	flags.Float64("max-rate", 50, "rate ceiling in requests per second")
	flags.Duration("window", time.Minute, "rate enforcement window")
	flags.Float64("reduction-factor", 0.5, "rate multiplier applied on each 429")
	flags.Float64("increase-factor", 0.01, "growth exponent per successful call")
	flags.Duration("cooldown", 10*time.Second, "minimum interval between rate reductions")
	flags.Int("max-attempts", 0, "throttle attempts per item, 0 for unlimited")

	_ = viper.BindPFlags(flags)

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	input := os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		input = f
	}

	bodies, err := readBodies(input)
	if err != nil {
		return err
	}
	if len(bodies) == 0 {
		return errors.New("no input bodies")
	}

	b, err := bucket.New(bucket.Config{
		InitialRate:     cfg.InitialRate,
		MaxRate:         cfg.MaxRate,
		Window:          cfg.Window,
		ReductionFactor: cfg.ReductionFactor,
		IncreaseFactor:  cfg.IncreaseFactor,
		Cooldown:        cfg.Cooldown,
	})
	if err != nil {
		return err
	}

	l, err := limit.New(b,
		limit.WithMaxAttempts(cfg.MaxAttempts),
		limit.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: cfg.Timeout}
	post := limit.Wrap(l, func(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
		return postOne(ctx, client, cfg.URL, body)
	})

	runOpts := []runner.Option{
		runner.WithConcurrency(cfg.Concurrency),
		runner.WithMaxRetries(cfg.MaxRetries),
		runner.WithFallback(json.RawMessage("null")),
		runner.WithLogger(logger),
		runner.WithProgress(func(completed, total int) {
			fmt.Fprintf(os.Stderr, "\r%d/%d", completed, total)
		}),
	}
	if cfg.ExitOnError {
		runOpts = append(runOpts, runner.WithExitOnError())
	}

	r, err := runner.Build(post, runOpts...)
	if err != nil {
		return err
	}

	ctx, stop := runner.SignalContext(cmd.Context())
	defer stop()

	results, details := r.Run(ctx, bodies)
	fmt.Fprintln(os.Stderr)

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	failed := 0
	for i, res := range results {
		if details[i].Status == runner.FallbackUsed {
			failed++
		}
		out.Write(res)
		out.WriteByte('\n')
	}

	logger.Info("bulk run finished", "items", len(bodies), "failed", failed, "final_rate", fmt.Sprintf("%.2f", b.Rate()))

	return nil
}

// readBodies parses one JSON value per line, skipping blanks.
func readBodies(r io.Reader) ([]json.RawMessage, error) {
	var bodies []json.RawMessage

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		if !json.Valid(text) {
			return nil, fmt.Errorf("input line %d is not valid JSON", line)
		}
		bodies = append(bodies, json.RawMessage(bytes.Clone(text)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	return bodies, nil
}

// postOne fires a single request. HTTP 429 is surfaced as a throttle
// error so the limiter feeds it back into the bucket; any other
// non-200 status is an ordinary item failure.
func postOne(ctx context.Context, client *http.Client, url string, body json.RawMessage) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exec http do: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status 429", limit.ErrThrottled)
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, b)
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return out, nil
}
