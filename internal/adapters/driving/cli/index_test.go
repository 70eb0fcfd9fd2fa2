package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/acqgen/internal/core/domain"
)

func TestIndexCmd(t *testing.T) {
	tests := []struct {
		name    string
		service *mockIndexService
		wantOut []string
		wantErr string
	}{
		{
			name:    "success",
			service: &mockIndexService{summary: &domain.IndexSummary{Sources: 2, Chunks: 9}},
			wantOut: []string{"Indexed 9 chunks from 2 sources."},
		},
		{
			name:    "failed sources",
			service: &mockIndexService{summary: &domain.IndexSummary{Sources: 3, Chunks: 4, Failed: []string{"broken.html"}}},
			wantOut: []string{"Indexed 4 chunks from 3 sources.", "failed: broken.html"},
			wantErr: "1 sources failed to index",
		},
		{
			name:    "service error",
			service: &mockIndexService{err: errors.New("connection refused")},
			wantErr: "indexing failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetServices(Services{Index: tt.service})
			defer SetServices(Services{})

			buf := new(bytes.Buffer)
			rootCmd.SetOut(buf)
			rootCmd.SetErr(new(bytes.Buffer))
			rootCmd.SetArgs([]string{"index"})
			defer func() {
				rootCmd.SetArgs(nil)
				rootCmd.SetErr(nil)
			}()

			err := rootCmd.Execute()

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			for _, want := range tt.wantOut {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestIndexCmd_NotConfigured(t *testing.T) {
	SetServices(Services{})

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"index"})
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieval.backend")
}
