package file_test

import (
	"testing"

	"cashflowd/cashflow-ingest/cmd/file"

	"github.com/stretchr/testify/assert"
)

func TestFileCommand_Metadata(t *testing.T) {
	assert.Equal(t, "file", file.Cmd.Use)
	assert.Contains(t, file.Cmd.Short, "CSV transaction extract")
	assert.Contains(t, file.Cmd.Long, "batch fingerprint")
	assert.NotNil(t, file.Cmd.RunE)
}

func TestFileCommand_RequiresFlags(t *testing.T) {
	// Without --input the command refuses to run.
	err := file.Cmd.RunE(file.Cmd, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "--input")
}
