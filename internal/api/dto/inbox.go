package dto

// InboxQueryReq 收件箱查询条件
type InboxQueryReq struct {
	Statuses     []string `form:"status"`
	ChannelTypes []string `form:"channel_type"`
	AssignedTo   *uint64  `form:"assigned_to"`
	Unread       bool     `form:"unread"`
	Search       string   `form:"search"`
	Limit        int      `form:"limit"`
	Offset       int      `form:"offset"`
}

// ConversationStatsDTO 团队会话统计
type ConversationStatsDTO struct {
	Total                 int64   `json:"total"`
	Open                  int64   `json:"open"`
	Pending               int64   `json:"pending"`
	Closed                int64   `json:"closed"`
	Snoozed               int64   `json:"snoozed"`
	Unassigned            int64   `json:"unassigned"`
	AverageResponseTime   float64 `json:"average_response_time"`
	AverageResolutionTime float64 `json:"average_resolution_time"`
}

// InboxDTO 收件箱视图：会话列表 + 全团队统计
type InboxDTO struct {
	Conversations []*ConversationDTO    `json:"conversations"`
	Stats         *ConversationStatsDTO `json:"stats"`
}
