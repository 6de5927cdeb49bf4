package streammux

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMarker(t *testing.T) {
	tests := []struct {
		input   string
		want    Marker
		wantErr bool
	}{
		{input: "stdout", want: MarkerStdout},
		{input: "stderr", want: MarkerStderr},
		{input: "control", want: MarkerControl},
		{input: "1", want: MarkerStdout},
		{input: "3", want: MarkerControl},
		{input: "x", want: 'x'},
		{input: "~", want: '~'},
		{input: "@", wantErr: true},
		{input: "", wantErr: true},
		{input: "12", wantErr: true},
		{input: "xx", wantErr: true},
		{input: "Stdout", wantErr: true},
		{input: " ", wantErr: true},
		{input: "\n", wantErr: true},
		{input: "\x7f", wantErr: true},
		{input: "é", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMarker(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidMarker)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMarker_String(t *testing.T) {
	require.Equal(t, "stdout", MarkerStdout.String())
	require.Equal(t, "stderr", MarkerStderr.String())
	require.Equal(t, "control", MarkerControl.String())
	require.Equal(t, "x", Marker('x').String())

	// Names round trip through ParseMarker.
	for _, m := range []Marker{MarkerStdout, MarkerStderr, MarkerControl, 'i'} {
		got, err := ParseMarker(m.String())
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
}
