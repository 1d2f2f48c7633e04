package pos

const (
	minTaxID = 100000000
	maxTaxID = 999999999
)

// allowedLeadingDigits are the first digits issued for tax ids. 4, 7 and 8
// are never issued.
var allowedLeadingDigits = [10]bool{1: true, 2: true, 3: true, 5: true, 6: true, 9: true}

// IsValidTaxID reports whether n is a well-formed 9-digit tax id whose last
// digit matches the mod-11 check digit of the preceding eight.
func IsValidTaxID(n TaxID) bool {
	if n < minTaxID || n > maxTaxID {
		return false
	}
	if !allowedLeadingDigits[n/100000000] {
		return false
	}
	return int(n%10) == checkDigit(n/10)
}

// checkDigit weighs the digits of body 2..9 from least significant up.
// A result of 11 can never equal a digit, so such numbers are rejected.
func checkDigit(body TaxID) int {
	sum := 0
	for weight := 2; weight <= 9 && body != 0; weight++ {
		sum += int(body%10) * weight
		body /= 10
	}
	check := 11 - sum%11
	if check == 10 {
		return 0
	}
	return check
}
