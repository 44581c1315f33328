package handler

import (
	"Converge/internal/api/dto"
	"Converge/internal/pkg/response"
	"Converge/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	inboxService service.InboxService
	convService  service.ConversationService
}

func NewConversationHandler(inboxService service.InboxService, convService service.ConversationService) *ConversationHandler {
	return &ConversationHandler{inboxService: inboxService, convService: convService}
}

func parseConvID(c *gin.Context) (uint64, bool) {
	convID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return 0, false
	}
	return convID, true
}

// GetDetail 会话详情，含备注与审计事件
func (s *ConversationHandler) GetDetail(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	teamID := c.GetUint64("team_id")

	res, err := s.inboxService.GetConversationDetail(c.Request.Context(), teamID, convID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Assign 分配会话给客服
func (s *ConversationHandler) Assign(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	var req dto.AssignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	actorID := c.GetUint64("user_id")
	teamID := c.GetUint64("team_id")

	if err := s.convService.Assign(c.Request.Context(), actorID, teamID, convID, req.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// AddTag 打标签
func (s *ConversationHandler) AddTag(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	var req dto.TagReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	actorID := c.GetUint64("user_id")
	teamID := c.GetUint64("team_id")

	if err := s.convService.AddTag(c.Request.Context(), actorID, teamID, convID, req.Tag); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RemoveTag 移除标签
func (s *ConversationHandler) RemoveTag(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	tag := c.Param("tag")
	actorID := c.GetUint64("user_id")
	teamID := c.GetUint64("team_id")

	if err := s.convService.RemoveTag(c.Request.Context(), actorID, teamID, convID, tag); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// SetPriority 调整优先级
func (s *ConversationHandler) SetPriority(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	var req dto.SetPriorityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	actorID := c.GetUint64("user_id")
	teamID := c.GetUint64("team_id")

	if err := s.convService.SetPriority(c.Request.Context(), actorID, teamID, convID, req.Priority); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// SetStatus open/pending/snoozed 之间流转
func (s *ConversationHandler) SetStatus(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	var req dto.SetStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	actorID := c.GetUint64("user_id")
	teamID := c.GetUint64("team_id")

	if err := s.convService.SetStatus(c.Request.Context(), actorID, teamID, convID, req.Status); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Snooze 延后处理至指定时间
func (s *ConversationHandler) Snooze(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	var req dto.SnoozeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	actorID := c.GetUint64("user_id")
	teamID := c.GetUint64("team_id")

	if err := s.convService.Snooze(c.Request.Context(), actorID, teamID, convID, req.Until); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Close 关闭会话
func (s *ConversationHandler) Close(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	actorID := c.GetUint64("user_id")
	teamID := c.GetUint64("team_id")

	if err := s.convService.Close(c.Request.Context(), actorID, teamID, convID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Reopen 重新打开已关闭会话
func (s *ConversationHandler) Reopen(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	actorID := c.GetUint64("user_id")
	teamID := c.GetUint64("team_id")

	if err := s.convService.Reopen(c.Request.Context(), actorID, teamID, convID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// AddNote 添加内部备注
func (s *ConversationHandler) AddNote(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	var req dto.AddNoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	actorID := c.GetUint64("user_id")
	teamID := c.GetUint64("team_id")

	res, err := s.convService.AddNote(c.Request.Context(), actorID, teamID, convID, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// ListNotes 备注列表
func (s *ConversationHandler) ListNotes(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	teamID := c.GetUint64("team_id")

	res, err := s.convService.ListNotes(c.Request.Context(), teamID, convID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// ListEvents 审计事件列表
func (s *ConversationHandler) ListEvents(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	teamID := c.GetUint64("team_id")

	res, err := s.convService.ListEvents(c.Request.Context(), teamID, convID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
