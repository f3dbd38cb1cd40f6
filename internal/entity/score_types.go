package entity

// ScoreRequest is the body of a trust-score batch request.
type ScoreRequest struct {
	Addresses []string `json:"addresses"`
}

// ScoreResponse is the trust-score API envelope.
type ScoreResponse struct {
	Data []ScoreResult `json:"data"`
}

// ScoreResult holds the outcome for one requested address. TokenData is nil when
// the service could not score the token, in which case Error is usually set.
type ScoreResult struct {
	Address   string          `json:"address"`
	TokenData *ScoreTokenData `json:"tokenData,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type ScoreTokenData struct {
	Score      *float64        `json:"score"`
	DeployTime string          `json:"deployTime,omitempty"`
	AuditRisk  *ScoreAuditRisk `json:"auditRisk,omitempty"`
}

type ScoreAuditRisk struct {
	MintDisabled   bool `json:"mintDisabled"`
	FreezeDisabled bool `json:"freezeDisabled"`
	LpBurned       bool `json:"lpBurned"`
	Top10Holders   bool `json:"top10Holders"`
}
