package extraction

import "testing"

func TestNormalizeMerchant(t *testing.T) {
	tests := []struct {
		name          string
		rawMerchant   string
		wantName      string
		wantCategory  SpendCategory
		minConfidence float64
	}{
		{
			name:          "Woolworths grocery store",
			rawMerchant:   "WOOLWORTHS 1234 SYDNEY",
			wantName:      "Woolworths",
			wantCategory:  CategoryFood,
			minConfidence: 0.9,
		},
		{
			name:          "McDonald's fast food",
			rawMerchant:   "MCDONALD'S #12345",
			wantName:      "McDonald's",
			wantCategory:  CategoryFood,
			minConfidence: 0.9,
		},
		{
			name:          "Uber rideshare",
			rawMerchant:   "UBER *TRIP",
			wantName:      "Uber",
			wantCategory:  CategoryTransportation,
			minConfidence: 0.9,
		},
		{
			name:          "Netflix streaming",
			rawMerchant:   "NETFLIX.COM 123456789",
			wantName:      "Netflix",
			wantCategory:  CategoryEntertainment,
			minConfidence: 0.9,
		},
		{
			name:          "Amazon shopping",
			rawMerchant:   "AMAZON.COM*1234567",
			wantName:      "Amazon",
			wantCategory:  CategoryShopping,
			minConfidence: 0.9,
		},
		{
			name:          "Visa prefix removal",
			rawMerchant:   "VISA *STARBUCKS #123",
			wantName:      "Starbucks",
			wantCategory:  CategoryFood,
			minConfidence: 0.9,
		},
		{
			name:          "Generic restaurant keyword",
			rawMerchant:   "SOME RANDOM RESTAURANT",
			wantCategory:  CategoryFood,
			minConfidence: 0.5,
		},
		{
			name:          "Generic pharmacy keyword",
			rawMerchant:   "LOCAL PHARMACY",
			wantCategory:  CategoryHealthcare,
			minConfidence: 0.5,
		},
		{
			name:          "Unknown merchant",
			rawMerchant:   "XYZABC PTY LTD",
			wantCategory:  CategoryOther,
			minConfidence: 0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeMerchant(tt.rawMerchant)

			if tt.wantName != "" && got.Name != tt.wantName {
				t.Errorf("NormalizeMerchant(%q).Name = %q, want %q", tt.rawMerchant, got.Name, tt.wantName)
			}

			if got.Category != tt.wantCategory {
				t.Errorf("NormalizeMerchant(%q).Category = %v, want %v", tt.rawMerchant, got.Category, tt.wantCategory)
			}

			if got.Confidence < tt.minConfidence {
				t.Errorf("NormalizeMerchant(%q).Confidence = %f, want >= %f", tt.rawMerchant, got.Confidence, tt.minConfidence)
			}
		})
	}
}

func TestFormatMerchantName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"WOOLWORTHS", "Woolworths"},
		{"VISA *STARBUCKS", "Starbucks"},
		{"POS COFFEE SHOP PTY LTD", "Coffee Shop Pty"}, // PTY at end gets truncated
		{"EFTPOS SOME STORE 123456789", "Some Store"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := formatMerchantName(tt.raw)
			if got != tt.want {
				t.Errorf("formatMerchantName(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeMerchant_LongestKeyWins(t *testing.T) {
	got := NormalizeMerchant("UBER EATS SYDNEY")
	if got.Name != "Uber Eats" {
		t.Errorf("Name = %q, want %q", got.Name, "Uber Eats")
	}
	if got.Category != CategoryFood {
		t.Errorf("Category = %v, want %v", got.Category, CategoryFood)
	}
}

func TestNormalizeMerchant_Empty(t *testing.T) {
	got := NormalizeMerchant("  **  ")
	if got.Category != CategoryOther {
		t.Errorf("Category = %v, want %v", got.Category, CategoryOther)
	}
}
