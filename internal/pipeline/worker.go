package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dgallion1/docannot/internal/analysis"
	"github.com/dgallion1/docannot/internal/annotate"
)

// Worker annotates one document per job.
type Worker struct {
	ann *annotate.Annotator
	log *slog.Logger
}

func NewWorker(ann *annotate.Annotator, log *slog.Logger) *Worker {
	return &Worker{ann: ann, log: log}
}

// Process runs a job to a terminal status. A stage failure on the
// whole-document path fails only this job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)
	job.SetStatus(StatusAnalyzing, "analyzing")

	opts := job.Options
	opts.OnSentence = job.RecordSentence
	rep, err := w.ann.Annotate(ctx, job.DocID, opts)
	job.Finish(rep)

	for _, f := range rep.Failures {
		job.AddError(f.Error())
	}
	if err != nil {
		phase := "analyzing"
		if errors.Is(err, analysis.ErrStageAnalysis) {
			phase = "stage"
		}
		log.Error("job failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, phase)
		return
	}

	problems := rep.Unparsed + len(rep.Failures)
	switch {
	case problems == 0:
		job.SetStatus(StatusCompleted, "done")
	case rep.Annotations > 0:
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusFailed, "committing")
	}
	log.Info("job finished", "status", job.Snapshot().Status, "annotations", rep.Annotations, "unparsed", rep.Unparsed)
}
