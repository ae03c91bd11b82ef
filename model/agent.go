package model

// AgentProfile is the directory record of an agent: who it is, how to reach
// it, and which peers it may contact.
type AgentProfile struct {
	Id               string   `json:"id"`
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	Capabilities     []string `json:"capabilities,omitempty"`
	CanMessageAgents bool     `json:"canMessageAgents"`
	AllowedAgents    []string `json:"allowedAgents,omitempty"`
}

// MayContact reports whether the profile allows messaging the given address.
// An empty allow-list permits any address.
func (p *AgentProfile) MayContact(email string) bool {
	if !p.CanMessageAgents {
		return false
	}
	if len(p.AllowedAgents) == 0 {
		return true
	}
	for _, allowed := range p.AllowedAgents {
		if allowed == email {
			return true
		}
	}
	return false
}
