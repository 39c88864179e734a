package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PlyoJay/wmsview/internal/geo"
)

func TestParseCenter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected geo.GeoPoint
		wantErr  string
	}{
		{
			name:     "valid",
			input:    "127.36,36.34",
			expected: geo.GeoPoint{127.36, 36.34},
		},
		{
			name:     "tolerates_whitespace",
			input:    " 127.36 , 36.34 ",
			expected: geo.GeoPoint{127.36, 36.34},
		},
		{
			name:    "missing_latitude",
			input:   "127.36",
			wantErr: "expected lon,lat",
		},
		{
			name:    "too_many_values",
			input:   "127.36,36.34,2",
			wantErr: "expected lon,lat",
		},
		{
			name:    "bad_longitude",
			input:   "east,36.34",
			wantErr: "invalid longitude",
		},
		{
			name:    "bad_latitude",
			input:   "127.36,north",
			wantErr: "invalid latitude",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			center, err := parseCenter(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, center)
		})
	}
}
