package api

import "Converge/internal/api/handler"

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	InboxHandler        *handler.InboxHandler
	ConversationHandler *handler.ConversationHandler
	MessageHandler      *handler.MessageHandler
	TypingHandler       *handler.TypingHandler
	DraftHandler        *handler.DraftHandler
	MediaHandler        *handler.MediaHandler
	WSHandler           *handler.WsHandler
}
