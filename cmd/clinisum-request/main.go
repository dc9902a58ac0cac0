// Command clinisum-request exercises a running summarizer service with the
// notes found in a directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinisum/internal/domain"
	"clinisum/internal/notes"
)

const nonMedicalSample = "I like outdoor activities such as hiking, playing badminton and football. " +
	"Nature walk is also something I enjoy very much."

func main() {
	apiURL := flag.String("api", "http://0.0.0.0:8000", "summarizer service URL")
	notesDir := flag.String("notes", "./datasets/notes", "directory with .txt and .html notes")
	role := flag.String("role", domain.DefaultRole, "clinician role the summaries are written for")
	feedback := flag.String("feedback", "The summary was good.", "feedback sent at the end")
	timeout := flag.Duration("timeout", 3*time.Minute, "per request timeout")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r := &runner{
		client:  newClient(*apiURL, &http.Client{Timeout: *timeout}),
		out:     os.Stdout,
		log:     log,
		role:    *role,
		notes:   *notesDir,
		comment: *feedback,
	}

	if err := r.run(ctx); err != nil {
		log.ErrorContext(ctx, "Run is finished with errors",
			"error", err,
			"api", *apiURL)

		os.Exit(1)
	}
}

type runner struct {
	client  *client
	out     io.Writer
	log     *slog.Logger
	role    string
	notes   string
	comment string
}

func (r *runner) run(ctx context.Context) error {
	var errs []error

	for _, step := range []func(context.Context) error{
		r.runHealth,
		r.runSummarize,
		r.runSummarizeNonMedical,
		r.runFeedback,
	} {
		if err := step(ctx); err != nil {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			break
		}
	}

	return errors.Join(errs...)
}

func (r *runner) runHealth(ctx context.Context) error {
	res, err := r.client.health(ctx)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}

	fmt.Fprintf(r.out, "Health endpoint reply:\n%s\n\n", res.Raw)
	return nil
}

func (r *runner) runSummarize(ctx context.Context) error {
	fmt.Fprint(r.out, "Reading provided notes.\n\n")

	loaded, err := notes.LoadDir(r.notes)
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}
	if len(loaded) == 0 {
		fmt.Fprintln(r.out, "No text files found.")
		return nil
	}

	var errs []error
	for _, note := range loaded {
		res, err := r.client.summarize(ctx, note.Text, r.role)
		if err != nil {
			fmt.Fprintf(r.out, "Could not summarize %s. %v\n\n", note.Path, err)
			errs = append(errs, fmt.Errorf("summarize %s: %w", note.Path, err))
			continue
		}

		fmt.Fprintf(r.out, "Summary for %s:\n\n%s\n\n", note.Path, res.Get("summary").String())
		fmt.Fprintf(r.out, "Tokens used: %d | Processing time: %.2fs\n\n",
			res.Get("tokens").Int(), res.Get("processing_time").Float())

		fmt.Fprintln(r.out, "List of References:")
		for _, ref := range res.Get("references").Array() {
			fmt.Fprintf(r.out, "%s\n\n", ref.Raw)
		}
	}

	return errors.Join(errs...)
}

func (r *runner) runSummarizeNonMedical(ctx context.Context) error {
	res, err := r.client.summarize(ctx, nonMedicalSample, domain.DefaultRole)
	if err != nil {
		fmt.Fprintf(r.out, "Failed to summarize non-medical text. %v\n\n", err)
		return fmt.Errorf("summarize non-medical text: %w", err)
	}

	summary := res.Get("summary").String()
	fmt.Fprintf(r.out, "Summary:\nExpected: %s\nActual:   %s\n\n", domain.NoMedicalText, summary)

	if summary != domain.NoMedicalText {
		r.log.WarnContext(ctx, "Non-medical text is summarized",
			"summary", summary)
	}
	return nil
}

func (r *runner) runFeedback(ctx context.Context) error {
	res, err := r.client.feedback(ctx, r.comment)
	if err != nil {
		return fmt.Errorf("feedback: %w", err)
	}

	fmt.Fprintf(r.out, "Feedback endpoint reply:\n%s\n", res.Raw)
	return nil
}
