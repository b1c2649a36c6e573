package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope(t *testing.T) {
	t.Parallel()
	for _, e := range []Envelope{EnvelopeDoubleQuote, EnvelopeBracket, EnvelopeBacktick, EnvelopeNone, EnvelopeUnsupported} {
		got, err := ParseEnvelope(e.String())
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
	_, err := ParseEnvelope("parens")
	assert.Error(t, err)
	assert.Equal(t, "Envelope(9)", Envelope(9).String())
}

func TestRowLimit(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "limit", RowLimitLimit.String())
	assert.Equal(t, "top", RowLimitTop.String())
	assert.Equal(t, "RowLimit(7)", RowLimit(7).String())
	assert.Len(t, Names(), 5)
}
