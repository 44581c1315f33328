package handler

import (
	"Converge/internal/api/dto"
	"Converge/internal/pkg/response"
	"Converge/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

type InboxHandler struct {
	inboxService service.InboxService
}

func NewInboxHandler(inboxService service.InboxService) *InboxHandler {
	return &InboxHandler{inboxService: inboxService}
}

// GetInbox 收件箱视图：会话列表 + 团队统计
func (s *InboxHandler) GetInbox(c *gin.Context) {
	var req dto.InboxQueryReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	teamID := c.GetUint64("team_id")

	res, err := s.inboxService.GetInbox(c.Request.Context(), teamID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Search 全文检索消息
func (s *InboxHandler) Search(c *gin.Context) {
	var req dto.MessageSearchReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	teamID := c.GetUint64("team_id")

	res, err := s.inboxService.SearchMessages(c.Request.Context(), teamID, req.Query, req.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// MarkRead 标记会话已读
func (s *InboxHandler) MarkRead(c *gin.Context) {
	convID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	teamID := c.GetUint64("team_id")

	if err = s.inboxService.MarkRead(c.Request.Context(), teamID, convID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkUnread 手动标记会话未读
func (s *InboxHandler) MarkUnread(c *gin.Context) {
	convID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	teamID := c.GetUint64("team_id")

	if err = s.inboxService.MarkUnread(c.Request.Context(), teamID, convID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
