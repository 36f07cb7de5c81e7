package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWindow(t *testing.T) {
	w, err := NewWindow("01/01/2023", "08/01/2023")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2023, 1, 8, 0, 0, 0, 0, time.UTC), w.End)
	assert.False(t, w.Empty())
}

func TestNewWindow_BadDate(t *testing.T) {
	tests := []struct {
		name string
		st   string
		et   string
		bad  string
	}{
		{"iso start", "2023-01-01", "08/01/2023", "2023-01-01"},
		{"month out of range", "01/13/2023", "08/01/2023", "01/13/2023"},
		{"bad end", "01/01/2023", "tomorrow", "tomorrow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWindow(tt.st, tt.et)
			var dpe *DateParseError
			require.True(t, errors.As(err, &dpe), "got %v", err)
			assert.Equal(t, tt.bad, dpe.Value)
		})
	}
}

func TestWindowBounds(t *testing.T) {
	w, err := NewWindow("01/01/2023", "08/01/2023")
	require.NoError(t, err)

	assert.True(t, w.ContainsHalfOpen(w.Start))
	assert.False(t, w.ContainsOpen(w.Start))

	last := w.End.Add(-time.Second)
	assert.True(t, w.ContainsHalfOpen(last))
	assert.True(t, w.ContainsOpen(last))

	assert.False(t, w.ContainsHalfOpen(w.End))
	assert.False(t, w.ContainsOpen(w.End))
}

func TestWindowEmpty(t *testing.T) {
	w, err := NewWindow("08/01/2023", "01/01/2023")
	require.NoError(t, err)
	assert.True(t, w.Empty())
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")
	for _, err := range []error{
		&ConfigurationError{Path: "Q_config.json", Err: cause},
		&TunnelError{Endpoint: "q1", Err: cause},
		&QueryError{Source: "cti", Err: cause},
		&DateParseError{Value: "x", Err: cause},
	} {
		assert.ErrorIs(t, err, cause)
	}
}
