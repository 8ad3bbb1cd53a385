package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UMHC/umhc-finance/internal/domain/auth/common"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("climbing2026!")
	require.NoError(t, err)
	require.NotEqual(t, "climbing2026!", hash)

	assert.True(t, ComparePassword(hash, "climbing2026!"))
	assert.False(t, ComparePassword(hash, "climbing2026"))
	assert.False(t, ComparePassword("", "climbing2026!"))
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "snowdonia26", false},
		{"too short", "short1", true},
		{"no digit", "snowdoniatrip", true},
		{"no letter", "1234567890", true},
		{"long mixed", "Welsh3000sChallenge", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				require.ErrorIs(t, err, common.ErrWeakPassword)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
