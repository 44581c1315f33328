package handler

import (
	"Converge/internal/api/dto"
	"Converge/internal/pkg/response"
	"Converge/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	inboxService service.InboxService
}

func NewMessageHandler(inboxService service.InboxService) *MessageHandler {
	return &MessageHandler{inboxService: inboxService}
}

// List 按 seq 升序分页拉取消息
func (s *MessageHandler) List(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	teamID := c.GetUint64("team_id")

	res, err := s.inboxService.GetMessages(c.Request.Context(), teamID, convID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Send 客服发送消息
func (s *MessageHandler) Send(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	var req dto.SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	senderID := c.GetUint64("user_id")
	teamID := c.GetUint64("team_id")

	res, err := s.inboxService.SendMessage(c.Request.Context(), teamID, senderID, convID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Delete 软删除消息
func (s *MessageHandler) Delete(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	msgID := c.Param("msgId")
	teamID := c.GetUint64("team_id")

	if err := s.inboxService.DeleteMessage(c.Request.Context(), teamID, convID, msgID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
