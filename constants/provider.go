package constants

// Extraction provider strategy names, resolved once at startup.
const (
	ProviderHeuristic = "heuristic"
	ProviderVision    = "vision"
)

// DefaultCurrency is assumed when a receipt carries no currency signal.
const DefaultCurrency = "USD"
