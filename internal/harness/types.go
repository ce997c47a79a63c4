package harness

// Step types recorded in the trace.
const (
	StepIngest = "ingest"
	StepQuery  = "query"
)

// TraceFile is one file of an ingest step.
type TraceFile struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Kind    string `json:"kind"`
	Rows    int    `json:"rows_inserted"`
	Dropped int    `json:"rows_dropped"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TraceRecord is one search result without its row hash.
type TraceRecord struct {
	Table  string            `json:"table"`
	Fields map[string]string `json:"fields"`
}

// TraceQuery is the request of a query step.
type TraceQuery struct {
	Table   string     `json:"table,omitempty"`
	Field   string     `json:"field"`
	Include [][]string `json:"include,omitempty"`
	Exclude [][]string `json:"exclude,omitempty"`
	Limit   int        `json:"limit,omitempty"`
}

// TraceEvent is one executed step.
type TraceEvent struct {
	Seq  int    `json:"seq"`
	Type string `json:"type"`

	// Ingest steps.
	Files        []TraceFile `json:"files,omitempty"`
	Processed    int         `json:"processed,omitempty"`
	Skipped      int         `json:"skipped,omitempty"`
	Errored      int         `json:"errored,omitempty"`
	RowsInserted int         `json:"rows_inserted,omitempty"`
	RowsDropped  int         `json:"rows_dropped,omitempty"`

	// Query steps.
	Query   *TraceQuery   `json:"query,omitempty"`
	Count   int           `json:"count,omitempty"`
	Records []TraceRecord `json:"records,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is false when any step expectation or assertion failed.
	Pass bool `json:"pass"`

	// Trace holds one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors lists failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
