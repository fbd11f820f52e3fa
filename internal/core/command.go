package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandAnnounce binds an identity to the client's connection.
	CommandAnnounce CommandKind = iota
	// CommandSendPrivateMessage persists and delivers a message to one recipient.
	CommandSendPrivateMessage
	// CommandEditMessage replaces the content of a message the client sent.
	CommandEditMessage
	// CommandDeleteMessage removes a message the client sent.
	CommandDeleteMessage
)

func (k CommandKind) String() string {
	switch k {
	case CommandAnnounce:
		return "announce"
	case CommandSendPrivateMessage:
		return "send"
	case CommandEditMessage:
		return "edit"
	case CommandDeleteMessage:
		return "delete"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a client.
type Command struct {
	Kind      CommandKind
	Identity  string // CommandAnnounce
	Recipient string // CommandSendPrivateMessage
	MessageID string // CommandEditMessage, CommandDeleteMessage
	Content   string // CommandSendPrivateMessage, CommandEditMessage
}
