package model

// Actor identifies a conversation participant.
type Actor string

const (
	ActorUser   Actor = "user"
	ActorSystem Actor = "system"
	ActorAgent  Actor = "agent"
	ActorLLM    Actor = "llm"
	ActorTool   Actor = "tool"
)

// Actors lists every actor in display order.
var Actors = []Actor{ActorUser, ActorSystem, ActorAgent, ActorLLM, ActorTool}

// Valid reports whether a is one of the known actors.
func (a Actor) Valid() bool {
	switch a {
	case ActorUser, ActorSystem, ActorAgent, ActorLLM, ActorTool:
		return true
	}
	return false
}

// Category classifies an entry for filtering and coloring.
type Category string

const (
	CategoryMessage    Category = "message"
	CategoryTool       Category = "tool"
	CategoryToken      Category = "token"
	CategoryControl    Category = "control"
	CategoryError      Category = "error"
	CategoryPermission Category = "permission"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryMessage, CategoryTool, CategoryToken,
	CategoryControl, CategoryError, CategoryPermission,
}

func (c Category) Valid() bool {
	switch c {
	case CategoryMessage, CategoryTool, CategoryToken, CategoryControl, CategoryError, CategoryPermission:
		return true
	}
	return false
}

// Mode is the playback mode of the timeline
type Mode string

const (
	ModeLive    Mode = "live"
	ModePaused  Mode = "paused"
	ModePlaying Mode = "playing"
)

func (m Mode) Valid() bool {
	return m == ModeLive || m == ModePaused || m == ModePlaying
}

// ConnectionState is the state of the upstream stream connection
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateWaiting      ConnectionState = "waiting"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
)

// Short labels with meaning beyond display
const (
	ShortLabelStepFinish = "←Step"
)

// UnknownSessionID is used when an event carries no session
const UnknownSessionID = "unknown"
