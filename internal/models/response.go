package models

// MutationResponse answers admin calls that change stored data and trigger a backup.
type MutationResponse struct {
	Message string `json:"message"`
	Backup  string `json:"backup"`
}

type FetchGiftCodesResponse struct {
	Message  string   `json:"message"`
	NewCodes []string `json:"new_codes"`
	Backup   string   `json:"backup"`
}

type PlayerRedemptions struct {
	PlayerID      string   `json:"player_id"`
	RedeemedCodes []string `json:"redeemed_codes"`
}
