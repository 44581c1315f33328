package handler

import (
	"Converge/internal/api/dto"
	"Converge/internal/pkg/response"
	"Converge/internal/service"

	"github.com/gin-gonic/gin"
)

type DraftHandler struct {
	draftService service.DraftService
}

func NewDraftHandler(draftService service.DraftService) *DraftHandler {
	return &DraftHandler{draftService: draftService}
}

// Save 保存草稿，后写覆盖
func (s *DraftHandler) Save(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	var req dto.SaveDraftReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	res, err := s.draftService.SaveDraft(c.Request.Context(), convID, userID, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Get 读取草稿，不存在返回空
func (s *DraftHandler) Get(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	userID := c.GetUint64("user_id")

	res, err := s.draftService.GetDraft(c.Request.Context(), convID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Delete 删除草稿
func (s *DraftHandler) Delete(c *gin.Context) {
	convID, ok := parseConvID(c)
	if !ok {
		return
	}

	userID := c.GetUint64("user_id")

	if err := s.draftService.DeleteDraft(c.Request.Context(), convID, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
