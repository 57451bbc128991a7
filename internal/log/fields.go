package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldJobID      = "job_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldStage      = "stage"
	FieldCode       = "error_code"
	FieldPeriod     = "period"
	FieldTemplate   = "template"
	FieldOutputDir  = "output_dir"
	FieldTexPath    = "tex_path"
	FieldPDFPath    = "pdf_path"
	FieldExitCode   = "exit_code"
	FieldFile       = "file"
	FieldErrors     = "errors"
	FieldWarnings   = "warnings"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentEscaper   = "escaper"
	ComponentValidator = "validator"
	ComponentProcessor = "processor"
	ComponentTotals    = "totals"
	ComponentRenderer  = "renderer"
	ComponentCompiler  = "compiler"
	ComponentCleaner   = "cleaner"
	ComponentPipeline  = "pipeline"
	ComponentRecords   = "records"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentSheets    = "sheets"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentHTTP      = "http"
	ComponentSysCheck  = "syscheck"
)

// Operations defines standard operation names
const (
	OpValidate = "validate"
	OpProcess  = "process"
	OpRender   = "render"
	OpCompile  = "compile"
	OpClean    = "clean"
	OpGenerate = "generate"
	OpLoad     = "load"
	OpSave     = "save"
	OpDraft    = "draft"
	OpConsume  = "consume"
	OpPublish  = "publish"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithStage adds the pipeline stage and, when known, the failure code.
func (f LogFields) WithStage(stage, code string) LogFields {
	f[FieldStage] = stage
	if code != "" {
		f[FieldCode] = code
	}
	return f
}

// WithPaths adds the artifact paths of a generation run.
func (f LogFields) WithPaths(texPath, pdfPath string) LogFields {
	if texPath != "" {
		f[FieldTexPath] = texPath
	}
	if pdfPath != "" {
		f[FieldPDFPath] = pdfPath
	}
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
