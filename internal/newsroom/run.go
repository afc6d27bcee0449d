package newsroom

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RunRepo interface {
	InsertRun(ctx context.Context, r Report) error
	Run(ctx context.Context, id string) (Report, error)
	Runs(ctx context.Context, limit, offset uint64) ([]Report, error)
	CountRuns(ctx context.Context) (int, error)
}

// Stages an item can stop at.
const (
	StageDedup     = "dedup"
	StageTranslate = "translate"
	StageRelevance = "relevance"
	StageModerate  = "moderate"
	StagePersist   = "persist"
)

// Outcome is where an item ended up.
type Outcome string

const (
	OutcomeStored       Outcome = "stored"
	OutcomeFlagged      Outcome = "flagged"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeLowRelevance Outcome = "low_relevance"
	OutcomeError        Outcome = "error"
)

type (
	// ItemOutcome records the result of a single item in a run.
	ItemOutcome struct {
		Title     string   `json:"title"`
		SourceURL string   `json:"source_url"`
		Stage     string   `json:"stage"`
		Outcome   Outcome  `json:"outcome"`
		ArticleID string   `json:"article_id,omitempty"`
		Reason    string   `json:"reason,omitempty"`
		Fallbacks []string `json:"fallbacks,omitempty"`
		Error     string   `json:"error,omitempty"`
	}

	// SourceFailure is a feed that couldn't be fetched during a run.
	SourceFailure struct {
		Source string `json:"source"`
		Error  string `json:"error"`
	}

	// Report is the result of an ingestion run.
	Report struct {
		ID            string         `db:"id" json:"id"`
		StartedAt     time.Time      `db:"started_at" json:"started_at"`
		FinishedAt    time.Time      `db:"finished_at" json:"finished_at"`
		Processed     int            `db:"processed" json:"processed"`
		Stored        int            `db:"stored" json:"stored"`
		Duplicates    int            `db:"duplicates" json:"duplicates"`
		LowRelevance  int            `db:"low_relevance" json:"low_relevance"`
		Flagged       int            `db:"flagged" json:"flagged"`
		Errors        int            `db:"errors" json:"errors"`
		FetchFailures int            `db:"fetch_failures" json:"fetch_failures"`
		Outcomes      Outcomes       `db:"outcomes" json:"outcomes"`
		Failures      SourceFailures `db:"source_failures" json:"source_failures"`
	}
)

// Add folds a single item's outcome into the counters.
func (r *Report) Add(o ItemOutcome) {
	r.Processed++
	switch o.Outcome {
	case OutcomeStored:
		r.Stored++
	case OutcomeFlagged:
		r.Stored++
		r.Flagged++
	case OutcomeDuplicate:
		r.Duplicates++
	case OutcomeLowRelevance:
		r.LowRelevance++
	case OutcomeError:
		r.Errors++
	}
	r.Outcomes = append(r.Outcomes, o)
}

type Outcomes []ItemOutcome

func (o Outcomes) Value() (driver.Value, error) {
	if o == nil {
		o = Outcomes{}
	}
	byts, err := json.Marshal([]ItemOutcome(o))
	if err != nil {
		return nil, err
	}
	return string(byts), nil
}

func (o *Outcomes) Scan(src any) error {
	return scanJSON(src, o)
}

type SourceFailures []SourceFailure

func (f SourceFailures) Value() (driver.Value, error) {
	if f == nil {
		f = SourceFailures{}
	}
	byts, err := json.Marshal([]SourceFailure(f))
	if err != nil {
		return nil, err
	}
	return string(byts), nil
}

func (f *SourceFailures) Scan(src any) error {
	return scanJSON(src, f)
}

const runNamespace = "-run"

// NewRunID makes the ID a run is recorded under. It's created up front so
// articles stored during the run can point back to it.
func NewRunID() string {
	return fmt.Sprintf("%s%s", uuid.NewString(), runNamespace)
}
