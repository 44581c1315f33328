package handler

import (
	"Converge/internal/api/dto"
	"Converge/internal/pkg/response"
	"Converge/internal/service"

	"github.com/gin-gonic/gin"
)

type TypingHandler struct {
	typingService service.TypingService
}

func NewTypingHandler(typingService service.TypingService) *TypingHandler {
	return &TypingHandler{typingService: typingService}
}

// SetTyping 上报输入状态
func (s *TypingHandler) SetTyping(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	var req dto.TypingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	// 客服侧上报默认使用登录身份
	if req.UserID == 0 && req.CustomerID == 0 {
		req.UserID = c.GetUint64("user_id")
	}

	if err := s.typingService.SetTyping(c.Request.Context(), convID, &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// GetTyping 查询会话当前正在输入的主体
func (s *TypingHandler) GetTyping(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	res, err := s.typingService.GetTyping(c.Request.Context(), convID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
