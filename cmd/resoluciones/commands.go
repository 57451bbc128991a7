package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"time"

	"resoluciones/internal/amqp"
	"resoluciones/internal/cli"
	"resoluciones/internal/core"
	derrors "resoluciones/internal/errors"
	apphttp "resoluciones/internal/http"
	"resoluciones/internal/log"
	"resoluciones/internal/pipeline"
	"resoluciones/internal/records"
	"resoluciones/internal/schema"
	"resoluciones/internal/services"
	"resoluciones/internal/syscheck"
)

// GenerateCmd implements the 'generate' command.
type GenerateCmd struct {
	Record   string `short:"r" help:"Record file, JSON or YAML (default RESOLUCIONES_RECORD_PATH)"`
	Template string `short:"t" help:"LaTeX template (default RESOLUCIONES_TEMPLATE_PATH)"`
	Output   string `short:"o" help:"Output directory (default RESOLUCIONES_OUTPUT_DIR)"`
	Name     string `short:"n" help:"Output file base name (default the document title)"`
	JSON     bool   `help:"Print the result as JSON"`
}

func (c *GenerateCmd) Run(g *Global) error {
	ctx, cancel := cli.SignalContext(context.Background(), g.Logger)
	defer cancel()

	res, err := g.App.Generator.GenerateFromFile(ctx, services.GenerateRequest{
		RecordPath:   c.Record,
		TemplatePath: c.Template,
		OutputDir:    c.Output,
		FileBase:     c.Name,
	})
	if err != nil {
		return err
	}
	if c.JSON {
		if err := writeJSON(g.Out, res); err != nil {
			return err
		}
	} else {
		printResult(g.Out, res)
	}
	return res.Err()
}

func printResult(w io.Writer, res *pipeline.Result) {
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	if !res.Success {
		for _, e := range res.ValidationErrors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
		if len(res.LogSummary) > 0 {
			fmt.Fprintln(w, "compiler log:")
			for _, line := range res.LogSummary {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
		return
	}
	for _, r := range res.Replaced {
		fmt.Fprintf(w, "replaced %s\n", r)
	}
	fmt.Fprintf(w, "%s (%s)\n", res.DocumentTitle, res.ResolutionCode)
	fmt.Fprintf(w, "pdf: %s\n", res.PDFPath)
	fmt.Fprintf(w, "tex: %s\n", res.TexPath)
	if res.Cleanup != nil {
		fmt.Fprintf(w, "cleaned %d intermediate files, %d left behind\n", res.Cleanup.TotalCleaned(), res.Cleanup.TotalFailed())
	}
	fmt.Fprintf(w, "done in %s\n", res.Duration.Round(time.Millisecond))
}

// ValidateCmd implements the 'validate' command.
type ValidateCmd struct {
	Record string `arg:"" optional:"" help:"Record file (default RESOLUCIONES_RECORD_PATH)"`
}

func (c *ValidateCmd) Run(g *Global) error {
	path := c.Record
	if path == "" {
		path = g.App.Config.RecordPath
	}
	record, err := g.App.Records.Load(path)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return derrors.Wrap(err, derrors.CodeRecordNotFound, "record file not found: "+path)
		}
		return err
	}

	res := schema.NewValidator(g.Logger).Validate(record)
	printValidation(g.Out, path, res)
	if !res.OK() {
		return derrors.New(derrors.CodeValidationFailed, res.Summary()).
			WithGuidance("Fix the listed fields in the record and try again.")
	}
	return nil
}

func printValidation(w io.Writer, path string, res schema.Result) {
	fmt.Fprintf(w, "%s: %s\n", path, res.Summary())
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
}

// DraftCmd implements the 'draft' command.
type DraftCmd struct {
	Period string `short:"p" help:"Period to draft, YYYY-MM (default the current month)"`
	Save   bool   `help:"Save the draft to the record file instead of printing it"`
	Out    string `help:"Record file written by --save (default RESOLUCIONES_RECORD_PATH)"`
	Force  bool   `help:"Overwrite an existing record file"`
	Format string `help:"Format printed without --save" enum:"json,yaml" default:"json"`
}

func (c *DraftCmd) Run(g *Global) error {
	period := core.Period{Year: time.Now().Year(), Month: time.Now().Month()}
	if c.Period != "" {
		p, err := core.ParsePeriod(c.Period)
		if err != nil {
			return derrors.Wrap(err, derrors.CodeInvalidInputType, fmt.Sprintf("invalid period %q, expected YYYY-MM", c.Period))
		}
		period = p
	}

	ctx, cancel := cli.SignalContext(context.Background(), g.Logger)
	defer cancel()

	drafter, err := g.App.Drafter(ctx)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	record, res, err := drafter.Draft(ctx, period)
	if err != nil {
		return err
	}

	if !c.Save {
		data, err := records.Encode(record, records.Format(c.Format))
		if err != nil {
			return err
		}
		_, err = g.Out.Write(data)
		return err
	}

	path := c.Out
	if path == "" {
		path = g.App.Config.RecordPath
	}
	if _, err := os.Stat(path); err == nil && !c.Force {
		return derrors.New(derrors.CodeFileWriteFailed, "record file already exists: "+path).
			WithGuidance("Pass --force to overwrite it.")
	}
	if _, err := g.App.Records.Save(path, record); err != nil {
		return err
	}
	printValidation(g.Out, path, res)
	fmt.Fprintf(g.Out, "draft for %s saved to %s\n", period, path)
	return nil
}

// CheckCmd implements the 'check' command.
type CheckCmd struct {
	CreateTemplate bool `help:"Write the default template when it is missing"`
	JSON           bool `help:"Print the report as JSON"`
}

func (c *CheckCmd) Run(g *Global) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rep := g.App.Checker.Run(ctx, g.App.CheckPaths(), c.CreateTemplate)
	if c.JSON {
		if err := writeJSON(g.Out, rep); err != nil {
			return err
		}
	} else {
		printReport(g.Out, rep)
	}
	if !rep.OK {
		return errors.New("system check failed")
	}
	return nil
}

func printReport(w io.Writer, rep syscheck.Report) {
	fmt.Fprintf(w, "platform: %s\n", rep.Platform)
	for _, ch := range rep.Checks {
		fmt.Fprintf(w, "[%s] %s: %s\n", ch.Status, ch.Name, ch.Message)
		if ch.Guidance != "" {
			fmt.Fprintf(w, "    %s\n", ch.Guidance)
		}
	}
	for _, p := range rep.Created {
		fmt.Fprintf(w, "created %s\n", p)
	}
}

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Port string `help:"Listen port (default PORT)"`
}

func (c *ServeCmd) Run(g *Global) error {
	cfg := g.App.Config
	port := c.Port
	if port == "" {
		port = cfg.Port
	}

	ctx, cancel := cli.SignalContext(context.Background(), g.Logger)
	defer cancel()

	deps := apphttp.Deps{
		Generator:  g.App.Generator,
		Records:    g.App.Records,
		RecordPath: cfg.RecordPath,
		Checker:    g.App.Checker,
		CheckPaths: g.App.CheckPaths(),
		Metrics:    g.App.MetricsHandler(),
	}
	if l, err := g.App.Ledger(ctx); err != nil {
		g.Logger.Warn("ledger unavailable, draft and overview routes disabled", log.FieldError, err.Error())
	} else {
		deps.Ledger = l
		drafter, _ := g.App.Drafter(ctx)
		deps.Drafter = drafter
	}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, g.Logger)
		if err != nil {
			g.Logger.Warn("job queue unavailable, continuing without it", log.FieldError, err.Error())
		} else {
			defer client.Close()
			deps.Jobs = client
		}
	}

	srv, err := apphttp.NewServer(":"+port, deps, apphttp.DefaultOptions(), g.Logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		g.Logger.Info("Starting resoluciones server", "port", port, "backend", cfg.LedgerBackend, "jobs", deps.Jobs != nil)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	g.Logger.Info("Server stopped gracefully")
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
