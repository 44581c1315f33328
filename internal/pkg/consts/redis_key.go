package consts

const (
	TypingKey           = "inbox:typing:"
	DraftKey            = "inbox:draft:"
	TeamChannelKey      = "inbox:team:channel:"
	ConversationChanKey = "inbox:conversation:channel:"
	TokenRevokeKey      = "auth:token:revoke:"
)

const (
	InboundDedupLock = "inbox:inbound:lock:"
)
