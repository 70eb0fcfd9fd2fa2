package messages

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/acqgen/internal/core/domain"
)

func TestGenerationFinished_Succeeded(t *testing.T) {
	tests := []struct {
		name string
		msg  GenerationFinished
		want bool
	}{
		{
			name: "all generated",
			msg: GenerationFinished{Manifest: &domain.PackageManifest{Documents: []domain.DocumentResult{
				{DocumentType: "mrr", Status: domain.StatusGenerated},
				{DocumentType: "igce", Status: domain.StatusSkipped},
			}}},
			want: true,
		},
		{
			name: "one failed",
			msg: GenerationFinished{Manifest: &domain.PackageManifest{Documents: []domain.DocumentResult{
				{DocumentType: "mrr", Status: domain.StatusFailed},
			}}},
			want: false,
		},
		{
			name: "unresolved",
			msg: GenerationFinished{Manifest: &domain.PackageManifest{Documents: []domain.DocumentResult{
				{DocumentType: "pws", Status: domain.StatusUnresolved},
			}}},
			want: false,
		},
		{name: "error", msg: GenerationFinished{Err: errors.New("cancelled")}, want: false},
		{name: "no manifest", msg: GenerationFinished{}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.Succeeded())
		})
	}
}
