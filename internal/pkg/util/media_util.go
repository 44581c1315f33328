package util

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

const thumbnailMaxEdge = 320

// DecodeImageMeta 解码图片并返回原图与尺寸
func DecodeImageMeta(reader io.Reader) (image.Image, int, int, error) {
	img, err := imaging.Decode(reader, imaging.AutoOrientation(true))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("图片解码失败: %w", err)
	}
	bounds := img.Bounds()
	return img, bounds.Dx(), bounds.Dy(), nil
}

// MakeThumbnail 生成等比缩略图，长边不超过 320px，输出 JPEG
func MakeThumbnail(img image.Image) (io.Reader, int64, error) {
	thumb := imaging.Fit(img, thumbnailMaxEdge, thumbnailMaxEdge, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, 0, fmt.Errorf("缩略图编码失败: %w", err)
	}
	return &buf, int64(buf.Len()), nil
}
