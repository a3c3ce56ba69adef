package cleanup

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"
)

// Actions recorded per processed username.
const (
	ActionNone        = "None"
	ActionSkip        = "Skip"
	ActionWouldDelete = "Would DELETE"
	ActionDeleted     = "DELETED"
	ActionError       = "ERROR"
)

// Result is the outcome for one username. Managed is nil when the account
// was not found, since sync state is unknowable for an absent record.
type Result struct {
	Username string
	InDuo    bool
	Managed  *bool
	Action   string
	Message  string
}

// Report collects the ordered per-username results of one run plus the
// paths of the artifacts it produced. Append-only while the run is live,
// immutable afterwards.
type Report struct {
	StartedAt   time.Time
	DryRun      bool
	Results     []Result
	BackupFile  string
	LogFile     string
	ResultsFile string
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
}

func (r *Report) NotInDuo() int { return r.countAction(ActionNone) }
func (r *Report) Deleted() int  { return r.countAction(ActionDeleted) }
func (r *Report) WouldDelete() int {
	return r.countAction(ActionWouldDelete)
}
func (r *Report) Errors() int { return r.countAction(ActionError) }

func (r *Report) DirectoryManaged() int {
	n := 0
	for _, res := range r.Results {
		if res.Managed != nil && *res.Managed {
			n++
		}
	}
	return n
}

func (r *Report) countAction(action string) int {
	n := 0
	for _, res := range r.Results {
		if res.Action == action {
			n++
		}
	}
	return n
}

// writeCSV writes the results file with the fixed column header the
// downstream tooling expects.
func (r *Report) writeCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Username", "In_Duo", "Managed_By_Sync", "Action", "Result"}); err != nil {
		return err
	}
	for _, res := range r.Results {
		managed := "None"
		if res.Managed != nil {
			managed = pyBool(*res.Managed)
		}
		if err := w.Write([]string{res.Username, pyBool(res.InDuo), managed, res.Action, res.Message}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// pyBool keeps the True/False capitalization the previous tooling's
// consumers already parse.
func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// PrintSummary writes the end-of-run tally to stdout.
func (r *Report) PrintSummary() {
	fmt.Println()
	fmt.Println("============================================================")
	fmt.Println("SUMMARY")
	fmt.Println("============================================================")
	fmt.Printf("Total processed: %d\n", len(r.Results))
	fmt.Printf("Not in Duo: %d\n", r.NotInDuo())
	fmt.Printf("Directory managed: %d\n", r.DirectoryManaged())
	fmt.Printf("Deleted: %d\n", r.Deleted())
	fmt.Printf("Would delete (dry run): %d\n", r.WouldDelete())
	fmt.Printf("Errors: %d\n", r.Errors())
	fmt.Printf("\nLogs written to: %s\n", r.LogFile)
	fmt.Printf("Results CSV: %s\n", r.ResultsFile)
	if r.BackupFile != "" {
		fmt.Printf("Backup file: %s\n", r.BackupFile)
	}
}
