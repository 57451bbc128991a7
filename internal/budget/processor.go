package budget

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"resoluciones/internal/core"
	derrors "resoluciones/internal/errors"
	"resoluciones/internal/log"
	"resoluciones/internal/schema"
)

// Processed is a record ready for rendering.
type Processed struct {
	Record         core.Record
	Totals         core.Totals
	MonthName      string
	Year           string
	LongDate       string
	ResolutionCode string
	DocumentTitle  string
	GeneratedAt    time.Time

	data map[string]any
}

// TemplateData returns the record in its stored shape plus every derived
// key, ready to be escaped and rendered.
func (p *Processed) TemplateData() map[string]any {
	return p.data
}

// Processor derives the computed fields of a validated record.
type Processor struct {
	logger *log.Logger
	now    func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock sets the clock that stamps the generation date.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a Processor. A nil logger discards output.
func NewProcessor(logger *log.Logger, opts ...Option) *Processor {
	p := &Processor{
		logger: log.OrNop(logger).WithComponent(log.ComponentProcessor),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process normalizes record, injects the annex totals, replaces the total
// placeholder in every article and stamps the resolution code. The input
// must already have passed schema validation and is never modified.
func (p *Processor) Process(record map[string]any) (out *Processed, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("processing aborted", log.FieldError, fmt.Sprint(r))
			out = nil
			err = derrors.Newf(derrors.CodeInternal, "error processing record: %v", r)
		}
	}()

	data, err := schema.Normalize(record)
	if err != nil {
		return nil, err
	}
	rec, err := schema.Decode(data)
	if err != nil {
		return nil, err
	}

	generatedAt := p.now()
	out = &Processed{GeneratedAt: generatedAt, data: data}

	out.MonthName, out.Year = p.periodFields(rec.Period)
	data[schema.KeyMonthName] = out.MonthName
	data[schema.KeyYear] = out.Year

	out.Totals = CalculateTotals(rec.Annex, p.logger)
	subtotal, penaltyTotal, netTotal := out.Totals.Formatted()
	annex := data[schema.KeyAnnex].(map[string]any)
	annex[schema.KeySubtotal] = subtotal
	annex[schema.KeyPenaltyTotal] = penaltyTotal
	annex[schema.KeyNetTotal] = netTotal

	articles, _ := data[schema.KeyArticles].([]any)
	for i, a := range rec.Articles {
		rec.Articles[i] = strings.ReplaceAll(a, schema.TotalPlaceholder, netTotal)
		articles[i] = rec.Articles[i]
	}

	titleBase := rec.TitleBase
	if strings.TrimSpace(titleBase) == "" {
		titleBase = schema.DefaultTitleBase
	}
	out.ResolutionCode = core.ResolutionCode(generatedAt)
	out.LongDate = core.LongDate(generatedAt, out.MonthName)
	out.DocumentTitle = fmt.Sprintf("%s - %s", out.ResolutionCode, titleBase)
	data[schema.KeyResolutionCode] = out.ResolutionCode
	data[schema.KeyLongDate] = out.LongDate
	data[schema.KeyDocumentTitle] = out.DocumentTitle

	out.Record = rec
	p.logger.Info("record processed",
		log.FieldPeriod, rec.Period,
		"resolution_code", out.ResolutionCode,
		"net_total", netTotal)
	return out, nil
}

// periodFields derives the month name and year of the budget period, falling
// back to placeholders when the period does not parse.
func (p *Processor) periodFields(period string) (string, string) {
	parsed, err := core.ParsePeriod(period)
	if err != nil {
		p.logger.Warn("cannot derive date fields from period", log.FieldPeriod, period, log.FieldError, err.Error())
		return schema.FallbackMonthName, schema.FallbackYear
	}
	return parsed.MonthName(), strconv.Itoa(parsed.Year)
}
