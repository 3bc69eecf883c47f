package mirror

import "time"

type OpType uint8

var opTypeNames = []string{
	"CreateDir",
	"CopyFile",
	"UpdateFile",
	"DeleteFile",
	"DeleteDir",
	"Error",
}

const (
	OpCreateDir OpType = iota
	OpCopyFile
	OpUpdateFile
	OpDeleteFile
	OpDeleteDir
	OpError
)

func (op OpType) String() string {
	return opTypeNames[op]
}

// EntryOp is the outcome of one action against one entry. A set Err means the
// action was attempted and failed; the entry is retried naturally on the next
// cycle.
type EntryOp struct {
	Op      OpType
	RelPath string
	Size    int64
	Err     error
}

// CycleReport aggregates every entry operation performed during one
// synchronization cycle. Nothing in it survives to the next cycle.
type CycleReport struct {
	StartedAt time.Time
	Duration  time.Duration
	Ops       []EntryOp
}

func NewCycleReport() *CycleReport {
	return &CycleReport{
		StartedAt: time.Now(),
	}
}

func (r *CycleReport) Record(op EntryOp) {
	r.Ops = append(r.Ops, op)
}

// Changed reports whether the cycle performed at least one successful
// create/update/delete. Failed attempts do not count.
func (r *CycleReport) Changed() bool {
	for _, op := range r.Ops {
		if op.Err == nil && op.Op != OpError {
			return true
		}
	}
	return false
}

// Count returns the number of successful operations of the given type.
func (r *CycleReport) Count(op OpType) int {
	n := 0
	for _, o := range r.Ops {
		if o.Op == op && o.Err == nil {
			n++
		}
	}
	return n
}

// Errors returns the operations that failed during the cycle.
func (r *CycleReport) Errors() []EntryOp {
	var failed []EntryOp
	for _, op := range r.Ops {
		if op.Err != nil {
			failed = append(failed, op)
		}
	}
	return failed
}
