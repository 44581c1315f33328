package handler

import (
	"Converge/internal/api/dto"
	"Converge/internal/pkg/consts"
	"Converge/internal/pkg/minio"
	"Converge/internal/pkg/response"
	"Converge/internal/pkg/util"
	"Converge/internal/service"
	log "log/slog"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MediaHandler struct{}

func NewMediaHandler() *MediaHandler {
	return &MediaHandler{}
}

// Upload 上传消息附件。图片附带生成缩略图。
func (s *MediaHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	reader, err := file.Open()
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	defer func() { _ = reader.Close() }()

	contentType, err := util.GetSafeContentType(reader)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	isImage := strings.HasPrefix(contentType, consts.MimePrefixImage)
	isVideo := strings.HasPrefix(contentType, consts.MimePrefixVideo)
	isAudio := strings.HasPrefix(contentType, consts.MimePrefixAudio)
	isFile := contentType == "application/pdf" || contentType == "application/octet-stream"
	if !isImage && !isVideo && !isAudio && !isFile {
		response.Error(c, service.ErrFileNotSupported)
		return
	}

	ext := path.Ext(file.Filename)
	objectName := time.Now().Format("2006/01/02/") + uuid.NewString() + ext

	res := dto.MediaUploadDTO{
		MimeType: contentType,
		Size:     file.Size,
	}

	if isImage {
		img, width, height, decErr := util.DecodeImageMeta(reader)
		if decErr != nil {
			response.Error(c, service.ErrFileNotSupported)
			return
		}
		res.Width = width
		res.Height = height

		thumb, thumbSize, thumbErr := util.MakeThumbnail(img)
		if thumbErr == nil {
			thumbName := objectName + ".thumb.jpg"
			if key, upErr := minio.UploadFile(c.Request.Context(), thumbName, thumb, thumbSize, "image/jpeg"); upErr == nil {
				res.CoverURL = minio.GetPublicURL(key)
			} else {
				log.WarnContext(c.Request.Context(), "thumbnail upload failed", "object", thumbName, "err", upErr)
			}
		}

		// 解码消耗了读取位置，重新回绕后上传原图
		if _, err = reader.Seek(0, 0); err != nil {
			response.Error(c, service.UnExpectedError)
			return
		}
	}

	fileKey, err := minio.UploadFile(c.Request.Context(), objectName, reader, file.Size, contentType)
	if err != nil {
		log.ErrorContext(c.Request.Context(), "MinIO upload failed", "err", err)
		response.Error(c, service.UnExpectedError)
		return
	}
	res.URL = minio.GetPublicURL(fileKey)

	log.InfoContext(c.Request.Context(), "media upload success", "fileKey", fileKey, "type", contentType)
	response.Success(c, res)
}
