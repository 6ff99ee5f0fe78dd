// Package extraction turns financial PDFs into text, a document type and a
// structured analysis.
package extraction

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SpendCategory is the merchant-level spending category.
type SpendCategory string

const (
	CategoryFood           SpendCategory = "food"
	CategoryHousing        SpendCategory = "housing"
	CategoryTransportation SpendCategory = "transportation"
	CategoryEntertainment  SpendCategory = "entertainment"
	CategoryHealthcare     SpendCategory = "healthcare"
	CategoryUtilities      SpendCategory = "utilities"
	CategoryShopping       SpendCategory = "shopping"
	CategoryEducation      SpendCategory = "education"
	CategoryTravel         SpendCategory = "travel"
	CategoryOther          SpendCategory = "other"
)

// MerchantInfo contains normalized merchant information.
type MerchantInfo struct {
	Name       string
	Category   SpendCategory
	Confidence float64
}

// merchantMappings maps known merchant keywords to normalized names and categories.
var merchantMappings = map[string]MerchantInfo{
	// Grocery stores
	"woolworths":  {Name: "Woolworths", Category: CategoryFood, Confidence: 0.95},
	"coles":       {Name: "Coles", Category: CategoryFood, Confidence: 0.95},
	"aldi":        {Name: "Aldi", Category: CategoryFood, Confidence: 0.95},
	"costco":      {Name: "Costco", Category: CategoryFood, Confidence: 0.95},
	"iga":         {Name: "IGA", Category: CategoryFood, Confidence: 0.95},
	"whole foods": {Name: "Whole Foods", Category: CategoryFood, Confidence: 0.95},
	"trader joe":  {Name: "Trader Joe's", Category: CategoryFood, Confidence: 0.95},

	// Fast food & restaurants
	"mcdonalds":   {Name: "McDonald's", Category: CategoryFood, Confidence: 0.95},
	"mcdonald's":  {Name: "McDonald's", Category: CategoryFood, Confidence: 0.95},
	"starbucks":   {Name: "Starbucks", Category: CategoryFood, Confidence: 0.95},
	"subway":      {Name: "Subway", Category: CategoryFood, Confidence: 0.95},
	"kfc":         {Name: "KFC", Category: CategoryFood, Confidence: 0.95},
	"burger king": {Name: "Burger King", Category: CategoryFood, Confidence: 0.95},
	"dominos":     {Name: "Domino's", Category: CategoryFood, Confidence: 0.95},
	"pizza hut":   {Name: "Pizza Hut", Category: CategoryFood, Confidence: 0.95},

	// Food delivery
	"uber eats": {Name: "Uber Eats", Category: CategoryFood, Confidence: 0.95},
	"doordash":  {Name: "DoorDash", Category: CategoryFood, Confidence: 0.95},
	"deliveroo": {Name: "Deliveroo", Category: CategoryFood, Confidence: 0.95},
	"menulog":   {Name: "Menulog", Category: CategoryFood, Confidence: 0.95},
	"grubhub":   {Name: "Grubhub", Category: CategoryFood, Confidence: 0.95},

	// Transportation
	"uber":    {Name: "Uber", Category: CategoryTransportation, Confidence: 0.95},
	"lyft":    {Name: "Lyft", Category: CategoryTransportation, Confidence: 0.95},
	"didi":    {Name: "DiDi", Category: CategoryTransportation, Confidence: 0.95},
	"shell":   {Name: "Shell", Category: CategoryTransportation, Confidence: 0.95},
	"bp":      {Name: "BP", Category: CategoryTransportation, Confidence: 0.95},
	"caltex":  {Name: "Caltex", Category: CategoryTransportation, Confidence: 0.95},
	"ampol":   {Name: "Ampol", Category: CategoryTransportation, Confidence: 0.95},
	"chevron": {Name: "Chevron", Category: CategoryTransportation, Confidence: 0.95},
	"exxon":   {Name: "Exxon", Category: CategoryTransportation, Confidence: 0.95},
	"opal":    {Name: "Opal Card", Category: CategoryTransportation, Confidence: 0.95},
	"myki":    {Name: "Myki", Category: CategoryTransportation, Confidence: 0.95},

	// Entertainment
	"netflix":         {Name: "Netflix", Category: CategoryEntertainment, Confidence: 0.95},
	"spotify":         {Name: "Spotify", Category: CategoryEntertainment, Confidence: 0.95},
	"disney+":         {Name: "Disney+", Category: CategoryEntertainment, Confidence: 0.95},
	"hulu":            {Name: "Hulu", Category: CategoryEntertainment, Confidence: 0.95},
	"amazon prime":    {Name: "Amazon Prime", Category: CategoryEntertainment, Confidence: 0.95},
	"hbo max":         {Name: "HBO Max", Category: CategoryEntertainment, Confidence: 0.95},
	"youtube premium": {Name: "YouTube Premium", Category: CategoryEntertainment, Confidence: 0.95},

	// Shopping
	"amazon":   {Name: "Amazon", Category: CategoryShopping, Confidence: 0.95},
	"ebay":     {Name: "eBay", Category: CategoryShopping, Confidence: 0.95},
	"target":   {Name: "Target", Category: CategoryShopping, Confidence: 0.95},
	"walmart":  {Name: "Walmart", Category: CategoryShopping, Confidence: 0.95},
	"ikea":     {Name: "IKEA", Category: CategoryShopping, Confidence: 0.95},
	"bunnings": {Name: "Bunnings", Category: CategoryShopping, Confidence: 0.95},
	"jb hi-fi": {Name: "JB Hi-Fi", Category: CategoryShopping, Confidence: 0.95},

	// Healthcare
	"chemist warehouse": {Name: "Chemist Warehouse", Category: CategoryHealthcare, Confidence: 0.95},
	"priceline":         {Name: "Priceline Pharmacy", Category: CategoryHealthcare, Confidence: 0.95},
	"cvs":               {Name: "CVS Pharmacy", Category: CategoryHealthcare, Confidence: 0.95},
	"walgreens":         {Name: "Walgreens", Category: CategoryHealthcare, Confidence: 0.95},

	// Utilities
	"telstra":  {Name: "Telstra", Category: CategoryUtilities, Confidence: 0.95},
	"optus":    {Name: "Optus", Category: CategoryUtilities, Confidence: 0.95},
	"vodafone": {Name: "Vodafone", Category: CategoryUtilities, Confidence: 0.95},
	"verizon":  {Name: "Verizon", Category: CategoryUtilities, Confidence: 0.95},
	"at&t":     {Name: "AT&T", Category: CategoryUtilities, Confidence: 0.95},
	"t-mobile": {Name: "T-Mobile", Category: CategoryUtilities, Confidence: 0.95},
	"comcast":  {Name: "Comcast", Category: CategoryUtilities, Confidence: 0.95},

	// Travel
	"airbnb":      {Name: "Airbnb", Category: CategoryTravel, Confidence: 0.95},
	"booking.com": {Name: "Booking.com", Category: CategoryTravel, Confidence: 0.95},
	"expedia":     {Name: "Expedia", Category: CategoryTravel, Confidence: 0.95},
	"qantas":      {Name: "Qantas", Category: CategoryTravel, Confidence: 0.95},
	"marriott":    {Name: "Marriott", Category: CategoryTravel, Confidence: 0.95},
	"hilton":      {Name: "Hilton", Category: CategoryTravel, Confidence: 0.95},
}

// categoryKeywords maps generic keywords to categories for fallback.
var categoryKeywords = map[string]SpendCategory{
	"restaurant": CategoryFood,
	"cafe":       CategoryFood,
	"coffee":     CategoryFood,
	"grocer":     CategoryFood,
	"market":     CategoryFood,
	"bakery":     CategoryFood,
	"pizza":      CategoryFood,
	"sushi":      CategoryFood,

	"fuel":    CategoryTransportation,
	"petrol":  CategoryTransportation,
	"parking": CategoryTransportation,
	"toll":    CategoryTransportation,
	"taxi":    CategoryTransportation,
	"train":   CategoryTransportation,
	"bus":     CategoryTransportation,

	"cinema":  CategoryEntertainment,
	"movie":   CategoryEntertainment,
	"theatre": CategoryEntertainment,
	"concert": CategoryEntertainment,
	"gaming":  CategoryEntertainment,

	"store":       CategoryShopping,
	"shop":        CategoryShopping,
	"electronics": CategoryShopping,
	"clothing":    CategoryShopping,

	"pharmacy": CategoryHealthcare,
	"chemist":  CategoryHealthcare,
	"doctor":   CategoryHealthcare,
	"medical":  CategoryHealthcare,
	"dental":   CategoryHealthcare,
	"hospital": CategoryHealthcare,

	"electric":  CategoryUtilities,
	"internet":  CategoryUtilities,
	"phone":     CategoryUtilities,
	"mobile":    CategoryUtilities,
	"broadband": CategoryUtilities,

	"hotel":   CategoryTravel,
	"flight":  CategoryTravel,
	"airline": CategoryTravel,
	"airport": CategoryTravel,

	"rent":     CategoryHousing,
	"mortgage": CategoryHousing,
	"lease":    CategoryHousing,

	"school":     CategoryEducation,
	"university": CategoryEducation,
	"college":    CategoryEducation,
	"tuition":    CategoryEducation,
	"course":     CategoryEducation,
}

// merchantKeys and keywordKeys give map lookups a stable order.
var (
	merchantKeys = sortedKeys(merchantMappings)
	keywordKeys  = sortedKeys(categoryKeywords)
)

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

var (
	// Patterns for cleaning merchant names
	prefixPattern = regexp.MustCompile(`(?i)^(pos |eftpos |visa |mastercard |amex |paypal \*)`)
	suffixPattern = regexp.MustCompile(`(?i)\s+(pty|ltd|inc|corp|llc|au|us|uk|nz|sg)\.?$`)
	longNumbers   = regexp.MustCompile(`\d{6,}`)
	specialChars  = regexp.MustCompile(`[*#]+`)
)

// NormalizeMerchant normalizes a merchant name and determines its category.
func NormalizeMerchant(rawMerchant string) MerchantInfo {
	lower := strings.ToLower(strings.TrimSpace(rawMerchant))

	// Clean the merchant name
	cleaned := prefixPattern.ReplaceAllString(lower, "")
	cleaned = suffixPattern.ReplaceAllString(cleaned, "")
	cleaned = longNumbers.ReplaceAllString(cleaned, "")
	cleaned = specialChars.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return MerchantInfo{Name: formatMerchantName(rawMerchant), Category: CategoryOther, Confidence: 0.1}
	}

	// Check for direct mapping first, longest keys first so "uber eats" beats "uber"
	for _, key := range merchantKeys {
		if strings.Contains(cleaned, key) || (len(cleaned) >= 3 && strings.Contains(key, cleaned)) {
			return merchantMappings[key]
		}
	}

	// Check for partial word matches
	for _, key := range merchantKeys {
		info := merchantMappings[key]
		words := strings.Fields(key)
		for _, word := range words {
			if len(word) > 3 && strings.Contains(cleaned, word) {
				return MerchantInfo{
					Name:       info.Name,
					Category:   info.Category,
					Confidence: 0.8, // Lower confidence for partial match
				}
			}
		}
	}

	// Fall back to keyword-based categorization
	for _, keyword := range keywordKeys {
		category := categoryKeywords[keyword]
		if strings.Contains(cleaned, keyword) {
			return MerchantInfo{
				Name:       formatMerchantName(rawMerchant),
				Category:   category,
				Confidence: 0.6,
			}
		}
	}

	// Default: clean the name, mark as Other
	return MerchantInfo{
		Name:       formatMerchantName(rawMerchant),
		Category:   CategoryOther,
		Confidence: 0.3,
	}
}

// formatMerchantName formats a raw merchant name for display.
func formatMerchantName(raw string) string {
	// Clean up the raw name
	cleaned := prefixPattern.ReplaceAllString(raw, "")
	cleaned = suffixPattern.ReplaceAllString(cleaned, "")
	cleaned = longNumbers.ReplaceAllString(cleaned, "")
	cleaned = specialChars.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	// Title case each word
	caser := cases.Title(language.English)
	words := strings.Fields(cleaned)
	for i, word := range words {
		if len(word) > 2 {
			words[i] = caser.String(strings.ToLower(word))
		} else {
			words[i] = strings.ToUpper(word)
		}
	}

	result := strings.Join(words, " ")
	if len(result) > 50 {
		result = result[:50]
	}

	return result
}
