package dto

// MediaUploadDTO 附件上传结果
type MediaUploadDTO struct {
	MimeType string `json:"mime_type"`
	URL      string `json:"url"`
	CoverURL string `json:"cover_url,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Size     int64  `json:"size"`
}
