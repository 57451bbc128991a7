package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateJob asks a worker to generate the document for a stored record.
// Paths are resolved on the worker host; empty fields use its defaults.
type GenerateJob struct {
	JobID        string    `json:"job_id"`
	RecordPath   string    `json:"record_path,omitempty"`
	TemplatePath string    `json:"template_path,omitempty"`
	OutputDir    string    `json:"output_dir,omitempty"`
	FileBase     string    `json:"file_base,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewGenerateJob creates a job with a fresh id.
func NewGenerateJob(recordPath, templatePath, outputDir, fileBase string) *GenerateJob {
	return &GenerateJob{
		JobID:        uuid.NewString(),
		RecordPath:   recordPath,
		TemplatePath: templatePath,
		OutputDir:    outputDir,
		FileBase:     fileBase,
		Timestamp:    time.Now(),
	}
}

func (j *GenerateJob) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}

// GenerateJobFromJSON decodes a job. Jobs without an id are rejected.
func GenerateJobFromJSON(data []byte) (*GenerateJob, error) {
	var job GenerateJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(job.JobID); err != nil {
		return nil, fmt.Errorf("invalid job id %q: %w", job.JobID, err)
	}
	return &job, nil
}
