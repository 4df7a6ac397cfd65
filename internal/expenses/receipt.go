package expenses

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ReceiptVAT is one VAT line lifted from a receipt.
type ReceiptVAT struct {
	Rate   float64 `json:"rate"`
	Amount float64 `json:"amount"`
}

// ReceiptFields holds whatever could be extracted from a receipt's OCR
// text. Every field is optional: absent values stay zero/nil and the user
// completes the draft by hand.
type ReceiptFields struct {
	Merchant string       `json:"merchant,omitempty"`
	Date     *time.Time   `json:"date,omitempty"`
	TotalTTC *float64     `json:"total_ttc,omitempty"`
	VAT      []ReceiptVAT `json:"vat,omitempty"`
	Category Category     `json:"category"`
}

var (
	// Total patterns in priority order: an explicit amount due beats a
	// bare TOTAL, which on many receipts also labels subtotals.
	totalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:NET\s+)?[AÀ]\s+PAYER\s*:?\s*(\d+(?:[ .]\d{3})*[,.]\d{2})`),
		regexp.MustCompile(`(?i)TOTAL\s+TTC\s*:?\s*(\d+(?:[ .]\d{3})*[,.]\d{2})`),
		regexp.MustCompile(`(?i)MONTANT\s+TTC\s*:?\s*(\d+(?:[ .]\d{3})*[,.]\d{2})`),
		regexp.MustCompile(`(?i)TOTAL\s*:?\s*(\d+(?:[ .]\d{3})*[,.]\d{2})`),
	}

	vatPattern  = regexp.MustCompile(`(?i)TVA\s*(?:[AÀ]\s*)?(\d+(?:[,.]\d+)?)\s*%\s*:?\s*(?:=\s*)?(\d+(?:[ .]\d{3})*[,.]\d{2})`)
	datePattern = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2,4})\b`)

	merchantSkip = regexp.MustCompile(`(?i)siret|siren|tva|tel|fax|www\.|http|ticket|facture|recu|reçu|caisse|n°|\d{5}`)
)

var categoryKeywords = map[Category][]string{
	CategoryMeals:    {"restaurant", "brasserie", "boulangerie", "cafe", "café", "pizzeria", "traiteur"},
	CategoryTravel:   {"sncf", "taxi", "uber", "peage", "péage", "autoroute", "parking", "hotel", "hôtel", "essence", "station"},
	CategorySupplies: {"papeterie", "bureau", "fourniture", "bricolage", "informatique"},
	CategoryServices: {"impression", "imprimerie", "nettoyage", "maintenance", "conseil"},
}

// parseAmount turns a French-formatted amount ("1 234,56") into a float.
func parseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(s, " ", "")
	// A dot followed by exactly three digits is a thousands separator.
	if i := strings.LastIndexAny(s, ",."); i >= 0 && len(s)-i-1 == 3 {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseDate(text string) *time.Time {
	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}

func parseMerchant(lines []string) string {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) < 3 || merchantSkip.MatchString(line) {
			continue
		}
		letters := 0
		for _, r := range line {
			if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || r > 127 {
				letters++
			}
		}
		if letters >= 3 {
			return line
		}
	}
	return ""
}

// GuessCategory maps merchant wording onto an expense category, falling
// back to "other".
func GuessCategory(merchant string) Category {
	lower := strings.ToLower(merchant)
	for cat, words := range categoryKeywords {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return cat
			}
		}
	}
	return CategoryOther
}

// ParseReceipt extracts expense fields from the OCR text of a French
// receipt. It is best-effort: any field it cannot find is left unset.
func ParseReceipt(text string) ReceiptFields {
	fields := ReceiptFields{Category: CategoryOther}
	lines := strings.Split(text, "\n")

	fields.Merchant = parseMerchant(lines)
	if fields.Merchant != "" {
		fields.Category = GuessCategory(fields.Merchant)
	}
	fields.Date = parseDate(text)

	for _, p := range totalPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			if v, ok := parseAmount(m[1]); ok {
				fields.TotalTTC = &v
				break
			}
		}
	}

	for _, m := range vatPattern.FindAllStringSubmatch(text, -1) {
		rate, okRate := parseAmount(m[1])
		amount, okAmount := parseAmount(m[2])
		if okRate && okAmount {
			fields.VAT = append(fields.VAT, ReceiptVAT{Rate: rate, Amount: amount})
		}
	}
	return fields
}

// DraftFromReceipt turns parsed fields into an expense draft. The HT
// amount is derived by subtracting recognized VAT from the total.
func DraftFromReceipt(fields ReceiptFields, receiptRef string, createdBy int64) Expense {
	exp := Expense{
		Merchant:    fields.Merchant,
		Category:    fields.Category,
		Status:      ExpenseStatusDraft,
		ExpenseDate: time.Now(),
		ReceiptRef:  &receiptRef,
		CreatedBy:   createdBy,
	}
	if fields.Date != nil {
		exp.ExpenseDate = *fields.Date
	}
	if fields.TotalTTC != nil {
		exp.TotalTTC = *fields.TotalTTC
		var vat float64
		for _, v := range fields.VAT {
			vat += v.Amount
		}
		exp.VATAmount = vat
		exp.AmountHT = exp.TotalTTC - vat
		if len(fields.VAT) == 1 {
			exp.VATRate = fields.VAT[0].Rate
		}
	}
	return exp
}
