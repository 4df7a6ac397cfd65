package expenses

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleReceipt = `BRASSERIE DU MARCHE
12 RUE DES HALLES
75001 PARIS
SIRET 12345678900014
Ticket n° 0042
Le 15/03/2025 12:42

2 Menu du jour        31,00
1 Cafe                 2,50

TOTAL TTC : 33,50
TVA 10,00% : 2,82
TVA 20,00% : 0,42
CB EMV
MERCI DE VOTRE VISITE`

func TestParseReceiptFullTicket(t *testing.T) {
	fields := ParseReceipt(sampleReceipt)

	require.Equal(t, "BRASSERIE DU MARCHE", fields.Merchant)
	require.Equal(t, CategoryMeals, fields.Category)

	require.NotNil(t, fields.Date)
	require.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), *fields.Date)

	require.NotNil(t, fields.TotalTTC)
	require.InDelta(t, 33.50, *fields.TotalTTC, 1e-9)

	require.Len(t, fields.VAT, 2)
	require.InDelta(t, 10, fields.VAT[0].Rate, 1e-9)
	require.InDelta(t, 2.82, fields.VAT[0].Amount, 1e-9)
	require.InDelta(t, 20, fields.VAT[1].Rate, 1e-9)
	require.InDelta(t, 0.42, fields.VAT[1].Amount, 1e-9)
}

func TestParseReceiptAPayerBeatsTotal(t *testing.T) {
	text := `STATION TOTAL ENERGIES
TOTAL : 51,00
NET A PAYER : 61,13
TVA 20,00% : 10,19
18.04.24`
	fields := ParseReceipt(text)
	require.NotNil(t, fields.TotalTTC)
	require.InDelta(t, 61.13, *fields.TotalTTC, 1e-9)
	require.Equal(t, CategoryTravel, fields.Category)
	require.NotNil(t, fields.Date)
	require.Equal(t, time.Date(2024, 4, 18, 0, 0, 0, 0, time.UTC), *fields.Date)
}

func TestParseReceiptThousandsSeparator(t *testing.T) {
	fields := ParseReceipt("GARAGE DUPONT\nTOTAL TTC : 1 234,56\n02/01/2025")
	require.NotNil(t, fields.TotalTTC)
	require.InDelta(t, 1234.56, *fields.TotalTTC, 1e-9)
}

func TestParseReceiptEmptyText(t *testing.T) {
	fields := ParseReceipt("")
	require.Empty(t, fields.Merchant)
	require.Nil(t, fields.Date)
	require.Nil(t, fields.TotalTTC)
	require.Empty(t, fields.VAT)
	require.Equal(t, CategoryOther, fields.Category)
}

func TestParseReceiptRejectsImpossibleDate(t *testing.T) {
	fields := ParseReceipt("EPICERIE FINE\n45/13/2025\nTOTAL : 10,00")
	require.Nil(t, fields.Date)
	require.NotNil(t, fields.TotalTTC)
}

func TestGuessCategory(t *testing.T) {
	require.Equal(t, CategoryMeals, GuessCategory("Restaurant Le Petit Zinc"))
	require.Equal(t, CategoryTravel, GuessCategory("SNCF GARE DE LYON"))
	require.Equal(t, CategorySupplies, GuessCategory("Papeterie Durand"))
	require.Equal(t, CategoryOther, GuessCategory("SARL Inconnue"))
}

func TestDraftFromReceiptDerivesHT(t *testing.T) {
	fields := ParseReceipt(sampleReceipt)
	draft := DraftFromReceipt(fields, "rcpt-123", 7)

	require.Equal(t, ExpenseStatusDraft, draft.Status)
	require.Equal(t, "BRASSERIE DU MARCHE", draft.Merchant)
	require.Equal(t, "rcpt-123", *draft.ReceiptRef)
	require.InDelta(t, 33.50, draft.TotalTTC, 1e-9)
	require.InDelta(t, 3.24, draft.VATAmount, 0.001)
	require.InDelta(t, 30.26, draft.AmountHT, 0.001)
	// Two different rates on the ticket: no single rate is picked.
	require.InDelta(t, 0, draft.VATRate, 1e-9)
}

func TestDraftFromReceiptSingleRate(t *testing.T) {
	fields := ReceiptFields{
		Merchant: "Taxi G7",
		TotalTTC: func() *float64 { v := 22.0; return &v }(),
		VAT:      []ReceiptVAT{{Rate: 10, Amount: 2.0}},
		Category: CategoryTravel,
	}
	draft := DraftFromReceipt(fields, "rcpt-9", 1)
	require.InDelta(t, 10, draft.VATRate, 1e-9)
	require.InDelta(t, 20, draft.AmountHT, 1e-9)
	require.False(t, draft.ExpenseDate.IsZero())
}
