package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Agents asks for per-agent positions and inventories on every tick.
	Agents bool `json:"agents,omitempty"`
}

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string        `json:"protocol_version"`
	EpisodeID       string        `json:"episode_id"`
	Tick            uint64        `json:"tick"`
	Params          EpisodeParams `json:"params"`
	ItemPalette     []string      `json:"item_palette"`
	Actions         []string      `json:"actions"`
	Groups          []string      `json:"groups"`
}

type EpisodeParams struct {
	Width    int   `json:"width"`
	Height   int   `json:"height"`
	MaxSteps int   `json:"max_steps"`
	Agents   int   `json:"agents"`
	Seed     int64 `json:"seed"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	EpisodeID       string `json:"episode_id"`
	Tick            uint64 `json:"tick"`

	Rewards      []float64      `json:"rewards"`
	Success      []bool         `json:"success"`
	ActionCounts map[string]int `json:"action_counts"`
	Frozen       int            `json:"frozen"`
	Done         bool           `json:"done"`

	Agents []AgentState `json:"agents,omitempty"`
}

type AgentState struct {
	ID          int            `json:"id"`
	Group       string         `json:"group"`
	Pos         [2]int         `json:"pos"`
	Orientation string         `json:"orientation"`
	Frozen      int            `json:"frozen"`
	Inventory   map[string]int `json:"inventory,omitempty"`
}
