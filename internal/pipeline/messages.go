package pipeline

import "github.com/flemzord/lookupbot/internal/lookup"

// User-facing replies.
const (
	NonNumericText = "❌ *Please send only numbers!*\n\n" +
		"📱 *Phone Lookup:* 10 digits\n" +
		"🆔 *Aadhar Lookup:* 12 digits"

	WrongLengthText = "❌ *Invalid input!*\n\n" +
		"Please send:\n" +
		"• 10-digit phone number\n" +
		"• 12-digit Aadhar number\n\n" +
		"Or use:\n" +
		"`/aadhar 658014451208`"

	RateLimitedText = "⏳ *Too many lookups!*\n\nPlease wait a minute before trying again."

	InternalErrorText = "❌ *An error occurred while processing your request.*"
)

// FetchErrorText is the generic retry-later reply for a failed fetch.
func FetchErrorText(kind lookup.Kind) string {
	if kind == lookup.KindNationalID {
		return "❌ *Error fetching Aadhar data. Please try again later.*"
	}
	return "❌ *Error fetching phone data. Please try again later.*"
}
