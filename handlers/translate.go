package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ocr-translator/config"
	"ocr-translator/middleware"
	"ocr-translator/models"
	"ocr-translator/pdf"
	"ocr-translator/store"
	"ocr-translator/translator"
)

// TaskRunner 后台任务执行器
type TaskRunner interface {
	Submit(taskID, pdfPath string)
	Cancel(taskID string) bool
	UploadPath(taskID string) string
}

// Handler HTTP 接口
type Handler struct {
	Config *config.Config
	Store  store.TaskStore
	Runner TaskRunner
	Logger logrus.FieldLogger
}

// NewHandler 创建 HTTP 接口
func NewHandler(cfg *config.Config, tasks store.TaskStore, runner TaskRunner, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{Config: cfg, Store: tasks, Runner: runner, Logger: logger}
}

// Register 注册 /api 路由
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.POST("/upload", h.UploadHandler)
		api.GET("/status/:taskId", h.GetStatusHandler)
		api.GET("/download/:taskId", h.DownloadHandler)
		api.GET("/tasks", h.GetTasksHandler)
		api.DELETE("/tasks/:taskId", h.DeleteTaskHandler)
		api.GET("/health", h.HealthHandler)
	}
}

// respondError 输入错误返回 400，其余返回 500
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if models.IsInputError(err) {
		status = http.StatusBadRequest
	}
	body := gin.H{"error": err.Error()}
	if code := models.CodeOf(err); code != "" {
		body["code"] = code
	}
	c.JSON(status, body)
}

func inputError(message string, cause error) error {
	return models.NewError(models.ErrInput, message, cause)
}

// UploadHandler 上传 PDF 并创建翻译任务
func (h *Handler) UploadHandler(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的会话"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, inputError("未找到上传文件", nil))
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !h.Config.AllowsExtension(ext) {
		respondError(c, inputError(
			fmt.Sprintf("不支持的文件类型 %q，只支持 %s", ext, strings.Join(h.Config.AllowedExtensions, ", ")), nil))
		return
	}
	if file.Size > h.Config.MaxUploadSize {
		respondError(c, inputError(
			fmt.Sprintf("文件过大: %d 字节，上限 %d 字节", file.Size, h.Config.MaxUploadSize), nil))
		return
	}

	targetLanguage := strings.TrimSpace(c.PostForm("targetLanguage"))
	if targetLanguage == "" {
		targetLanguage = h.Config.TargetLanguage
	}
	if _, err := translator.ParseLanguage(targetLanguage); err != nil {
		respondError(c, inputError("目标语言无效", err))
		return
	}

	taskID := uuid.New().String()
	uploadPath := h.Runner.UploadPath(taskID)
	if err := os.MkdirAll(filepath.Dir(uploadPath), 0755); err != nil {
		respondError(c, fmt.Errorf("创建上传目录失败: %w", err))
		return
	}
	if err := c.SaveUploadedFile(file, uploadPath); err != nil {
		respondError(c, fmt.Errorf("保存文件失败: %w", err))
		return
	}

	if err := pdf.Validate(uploadPath); err != nil {
		os.Remove(uploadPath)
		respondError(c, inputError("无效的 PDF 文件", err))
		return
	}

	now := time.Now()
	h.Store.Set(models.TranslateTask{
		ID:             taskID,
		Owner:          sessionID,
		Filename:       file.Filename,
		TargetLanguage: targetLanguage,
		Status:         models.StatusUploaded,
		Message:        "文件已上传，等待处理",
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	h.Runner.Submit(taskID, uploadPath)

	h.Logger.WithFields(logrus.Fields{
		"task":   taskID,
		"file":   file.Filename,
		"size":   file.Size,
		"target": targetLanguage,
	}).Info("翻译任务已创建")

	c.JSON(http.StatusOK, models.UploadResponse{
		TaskID:  taskID,
		Message: "文件上传成功，开始处理",
	})
}

// ownedTask 取出当前会话的任务，不存在或不属于该会话时写入 404
func (h *Handler) ownedTask(c *gin.Context) (models.TranslateTask, bool) {
	sessionID := middleware.GetSessionID(c)
	task, ok := h.Store.Get(c.Param("taskId"))
	if !ok || task.Owner != sessionID {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在或无权访问"})
		return models.TranslateTask{}, false
	}
	return task, true
}

// GetStatusHandler 获取任务状态
func (h *Handler) GetStatusHandler(c *gin.Context) {
	task, ok := h.ownedTask(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, task)
}

// DownloadHandler 下载翻译后的 PDF
func (h *Handler) DownloadHandler(c *gin.Context) {
	task, ok := h.ownedTask(c)
	if !ok {
		return
	}

	if task.Status != models.StatusCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "任务未完成"})
		return
	}
	if _, err := os.Stat(task.ResultPath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "结果文件不存在"})
		return
	}

	c.FileAttachment(task.ResultPath, "translated_"+task.Filename)
}

// GetTasksHandler 获取当前会话的所有任务
func (h *Handler) GetTasksHandler(c *gin.Context) {
	taskList := h.Store.List(middleware.GetSessionID(c))
	if taskList == nil {
		taskList = []models.TranslateTask{}
	}
	c.JSON(http.StatusOK, gin.H{
		"tasks": taskList,
		"total": len(taskList),
	})
}

// DeleteTaskHandler 取消并删除任务
func (h *Handler) DeleteTaskHandler(c *gin.Context) {
	task, ok := h.ownedTask(c)
	if !ok {
		return
	}

	cancelled := h.Runner.Cancel(task.ID)
	h.Store.Delete(task.ID)

	for _, path := range []string{h.Runner.UploadPath(task.ID), task.ResultPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.Logger.WithError(err).WithField("path", path).Warn("删除任务文件失败")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "任务已删除",
		"cancelled": cancelled,
	})
}

// HealthHandler 健康检查
func (h *Handler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
