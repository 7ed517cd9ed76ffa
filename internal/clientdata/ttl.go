package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// TTLExchangeRate - currency rates drift slowly within a day
	TTLExchangeRate = time.Hour

	// TTLFundPage - fund NAVs update once per business day
	TTLFundPage = 6 * time.Hour
)
