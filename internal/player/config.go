package player

// Config holds one player agent's identity and addressing.
type Config struct {
	AgentID         string
	Endpoint        string
	ManagerEndpoint string
}
