package util

import (
	"mime/multipart"
	"net/http"
)

// GetSafeContentType 按文件头嗅探真实类型，不信任客户端声明
func GetSafeContentType(file multipart.File) (string, error) {
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && n == 0 {
		return "", err
	}

	if _, err = file.Seek(0, 0); err != nil {
		return "", err
	}

	return http.DetectContentType(buf[:n]), nil
}
