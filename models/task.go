package models

import "time"

// TaskStatus 任务状态
type TaskStatus string

const (
	StatusUploaded   TaskStatus = "uploaded"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// IsTerminal 是否为终止状态
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TranslateTask 文档翻译任务（仅在进程生命周期内保存）
type TranslateTask struct {
	ID             string     `json:"id"`
	Owner          string     `json:"-"`
	Filename       string     `json:"filename"`
	TargetLanguage string     `json:"targetLanguage"`
	Status         TaskStatus `json:"status"`
	Progress       int        `json:"progress"` // 0-100
	Message        string     `json:"message"`
	ResultPath     string     `json:"resultPath,omitempty"`
	Error          string     `json:"error,omitempty"`
	DegradedPages  []int      `json:"degradedPages,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// SetProgress 设置进度，限制在 0-100
func (t *TranslateTask) SetProgress(p int) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	t.Progress = p
}

// Fail 将任务置为失败
func (t *TranslateTask) Fail(message string, err error) {
	t.Status = StatusFailed
	t.Message = message
	if err != nil {
		t.Error = err.Error()
	} else {
		t.Error = message
	}
}

// Complete 将任务置为完成
func (t *TranslateTask) Complete(resultPath, message string) {
	now := time.Now()
	t.Status = StatusCompleted
	t.Progress = 100
	t.Message = message
	t.ResultPath = resultPath
	t.CompletedAt = &now
}

// UploadResponse 上传接口响应
type UploadResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}
