package pricing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatEURUsesDecimalComma(t *testing.T) {
	got := FormatEUR(12.5)
	require.Equal(t, "12,50 €", got)
}

func TestFormatEURAlwaysTwoDecimals(t *testing.T) {
	require.True(t, strings.HasSuffix(FormatEUR(100), ",00 €"))
}

func TestFormatRateDropsTrailingZeros(t *testing.T) {
	require.Equal(t, "20 %", FormatRate(20))
	require.Equal(t, "5,5 %", FormatRate(5.5))
}
