package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/acqgen/internal/core/domain"
)

func TestManifestCmd_OutputsJSON(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"manifest", "--program", "Fleet Telematics"})
	defer func() {
		rootCmd.SetArgs(nil)
		resetFlags(manifestCmd)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	var manifest domain.PackageManifest
	require.NoError(t, json.Unmarshal(buf.Bytes(), &manifest))
	assert.Equal(t, "Fleet Telematics", manifest.ProgramName)
	require.Len(t, manifest.Records, 1)
	assert.Equal(t, domain.DocumentID("rec-1"), manifest.Records[0].ID)
	assert.Equal(t, domain.OutcomeAccepted, manifest.Records[0].Outcome)
}

func TestManifestCmd_NoService(t *testing.T) {
	SetServices(Services{})

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"manifest"})
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "package service not configured")
}
