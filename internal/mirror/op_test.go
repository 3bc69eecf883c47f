package mirror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCycleReport_Changed(t *testing.T) {
	report := NewCycleReport()
	assert.False(t, report.Changed())

	// a failed attempt is not a change
	report.Record(EntryOp{Op: OpCopyFile, RelPath: "a.txt", Err: errors.New("boom")})
	assert.False(t, report.Changed())
	assert.Len(t, report.Errors(), 1)

	report.Record(EntryOp{Op: OpCopyFile, RelPath: "b.txt", Size: 10})
	assert.True(t, report.Changed())
	assert.Equal(t, 1, report.Count(OpCopyFile))
}

func TestCycleReport_WalkErrorsAreNotChanges(t *testing.T) {
	report := NewCycleReport()
	report.Record(EntryOp{Op: OpError, RelPath: "gone.txt", Err: errors.New("vanished")})
	assert.False(t, report.Changed())
	assert.Len(t, report.Errors(), 1)
}

func TestOpType_String(t *testing.T) {
	assert.Equal(t, "CopyFile", OpCopyFile.String())
	assert.Equal(t, "UpdateFile", OpUpdateFile.String())
	assert.Equal(t, "DeleteDir", OpDeleteDir.String())
}
