package metadata_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/dittovault/pkg/store/metadata"
)

func TestValidateRepositoryID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "Plain", id: "acme"},
		{name: "Dashes", id: "acme-prod_2"},
		{name: "UUID", id: "4f9c2e0a-6a3b-4c1e-9d7f-0b1e2a3c4d5e"},
		{name: "MaxLength", id: strings.Repeat("r", metadata.MaxRepositoryIDLength)},
		{name: "Empty", id: "", wantErr: true},
		{name: "TooLong", id: strings.Repeat("r", metadata.MaxRepositoryIDLength+1), wantErr: true},
		{name: "Colon", id: "acme:secret", wantErr: true},
		{name: "TrailingColon", id: "acme:", wantErr: true},
		{name: "Slash", id: "acme/secret", wantErr: true},
		{name: "Space", id: "acme secret", wantErr: true},
		{name: "Control", id: "acme\x00", wantErr: true},
		{name: "Delete", id: "acme\x7f", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := metadata.ValidateRepositoryID(tt.id)
			if tt.wantErr {
				assert.True(t, metadata.IsValidation(err), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
