package dto

// LoginRequest is the form-urlencoded login submission from the portal page.
type LoginRequest struct {
	Username string `form:"username"`
	Password string `form:"password"`
	MAC      string `form:"mac"`
	IP       string `form:"ip"`
}

// LoginResponse mirrors the client contract: token is present only on success.
type LoginResponse struct {
	OK    bool   `json:"ok"`
	Token string `json:"token,omitempty"`
	Error string `json:"error,omitempty"`
}

// NetworkPayload carries the resolved policy. All keys are always emitted;
// the client renders zero values as placeholders.
type NetworkPayload struct {
	VLAN   int    `json:"vlan"`
	Policy string `json:"policy"`
	IPSet  string `json:"ipset"`
}

// StatusResponse is the polling payload. Every key the client dereferences
// is present even when unauthorized.
type StatusResponse struct {
	Authorized bool           `json:"authorized"`
	Role       string         `json:"role"`
	TTL        int64          `json:"ttl"`
	Network    NetworkPayload `json:"network"`
}

// LogoutRequest payload.
type LogoutRequest struct {
	MAC string `json:"mac"`
}

// LogoutResponse payload.
type LogoutResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// HeartbeatRequest payload.
type HeartbeatRequest struct {
	MAC string `json:"mac"`
}

// HeartbeatResponse is a status payload plus the reissued token.
type HeartbeatResponse struct {
	Authorized bool           `json:"authorized"`
	Role       string         `json:"role"`
	TTL        int64          `json:"ttl"`
	Network    NetworkPayload `json:"network"`
	Token      string         `json:"token,omitempty"`
}

// BatchStatusRequest payload.
type BatchStatusRequest struct {
	Entries []BatchStatusEntry `json:"entries"`
}

// BatchStatusEntry identifies one client in a batch query.
type BatchStatusEntry struct {
	MAC string `json:"mac"`
}

// BatchStatusResult is one per-MAC status in a batch response.
type BatchStatusResult struct {
	MAC        string         `json:"mac"`
	Authorized bool           `json:"authorized"`
	Role       string         `json:"role"`
	TTL        int64          `json:"ttl"`
	Network    NetworkPayload `json:"network"`
}

// BatchStatusResponse payload.
type BatchStatusResponse struct {
	Results []BatchStatusResult `json:"results"`
}
