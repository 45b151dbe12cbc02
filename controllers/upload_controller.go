package controllers

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nfnt/resize"

	"messenger-api/utils"
)

// UploadController 把图片写进上传目录并生成缩略图，返回可访问的 URL
type UploadController struct {
	dir string
}

func NewUploadController(dir string) *UploadController {
	return &UploadController{dir: dir}
}

// Upload 处理 multipart 图片上传
func (uc *UploadController) Upload(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "No file uploaded")
		return
	}

	if err := os.MkdirAll(uc.dir, 0o755); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "Failed to create upload directory")
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	name := fmt.Sprintf("%s%s", uuid.New().String(), ext)
	dst := filepath.Join(uc.dir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "Failed to save the file")
		return
	}

	result := gin.H{"url": "/uploads/" + name}
	if thumb, err := uc.makeThumbnail(dst, name); err != nil {
		// 缩略图失败不影响上传结果
		log.Printf("thumbnail for %s failed: %v", name, err)
	} else {
		result["thumbnail"] = thumb
	}
	utils.RespondSuccess(c, result, nil)
}

func (uc *UploadController) makeThumbnail(path, name string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", err
	}

	thumbnail := resize.Thumbnail(300, 300, img, resize.Lanczos3)

	thumbName := "thumb_" + strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
	out, err := os.Create(filepath.Join(uc.dir, thumbName))
	if err != nil {
		return "", err
	}
	defer out.Close()

	if err := jpeg.Encode(out, thumbnail, &jpeg.Options{Quality: 85}); err != nil {
		return "", err
	}
	return "/uploads/" + thumbName, nil
}
