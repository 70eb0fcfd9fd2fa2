package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runFactsCmd(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{"facts"}, args...))
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
		resetFlags(factsCmd)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestFactsCmd_RequiresKind(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := runFactsCmd("-p", "Fleet Telematics")

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"kind"`)
}

func TestFactsCmd_ListsFacts(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := runFactsCmd("-p", "Fleet Telematics", "-k", "cost", "-t", "market_research")

	require.NoError(t, err)
	assert.Contains(t, out, "[1] Estimated cost $450,000")
	assert.Contains(t, out, "450000 USD, pattern, confidence 0.90")
	assert.Contains(t, out, "Total: 1 facts")
	assert.Equal(t, []string{"market_research"}, packageService.(*mockPackageService).lastTypes)
}

func TestFactsCmd_NoFacts(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := runFactsCmd("-p", "Fleet Telematics", "-k", "date")

	require.NoError(t, err)
	assert.Contains(t, out, "No date facts committed for Fleet Telematics.")
}

func TestFactsCmd_JSONOutput(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := runFactsCmd("-p", "Fleet Telematics", "-k", "cost", "--json")

	require.NoError(t, err)
	assert.Contains(t, out, `"kind": "cost"`)
	assert.Contains(t, out, `"numeric_value": 450000`)
}
