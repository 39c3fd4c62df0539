package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// JobLogger 单个翻译任务的日志记录器
//
// 同时写入 logs/task_<id>_<时间>.log，可选输出到进程日志。
type JobLogger struct {
	entry   *logrus.Entry
	logFile *os.File
	taskID  string
	mutex   sync.Mutex
}

// NewJobLogger 创建任务日志记录器，logDir 为空时只写入 parent
func NewJobLogger(parent *logrus.Logger, logDir, taskID string, enableConsole bool) (*JobLogger, error) {
	if parent == nil {
		parent = Discard()
	}

	if logDir == "" {
		return &JobLogger{entry: parent.WithField("task", taskID), taskID: taskID}, nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	logFilePath := filepath.Join(logDir, fmt.Sprintf("task_%s_%s.log", taskID, timestamp))
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("创建日志文件失败: %w", err)
	}

	var writer io.Writer = logFile
	if enableConsole {
		writer = io.MultiWriter(logFile, parent.Out)
	}

	logger := logrus.New()
	logger.SetOutput(writer)
	logger.SetLevel(parent.GetLevel())
	logger.SetFormatter(parent.Formatter)

	jl := &JobLogger{
		entry:   logger.WithField("task", taskID),
		logFile: logFile,
		taskID:  taskID,
	}
	jl.Info("任务日志已初始化", logrus.Fields{"日志文件": logFilePath})
	return jl, nil
}

// Entry 返回底层 logrus.Entry
func (l *JobLogger) Entry() *logrus.Entry {
	return l.entry
}

// Debug 记录调试信息
func (l *JobLogger) Debug(message string, fields ...logrus.Fields) {
	l.with(fields).Debug(message)
}

// Info 记录信息
func (l *JobLogger) Info(message string, fields ...logrus.Fields) {
	l.with(fields).Info(message)
}

// Warn 记录警告
func (l *JobLogger) Warn(message string, fields ...logrus.Fields) {
	l.with(fields).Warn(message)
}

// Error 记录错误
func (l *JobLogger) Error(message string, err error, fields ...logrus.Fields) {
	e := l.with(fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(message)
}

func (l *JobLogger) with(fields []logrus.Fields) *logrus.Entry {
	if len(fields) > 0 && fields[0] != nil {
		return l.entry.WithFields(fields[0])
	}
	return l.entry
}

// LogPageProcessing 记录页面处理结果
func (l *JobLogger) LogPageProcessing(pageNum, totalPages, paragraphs int, degraded bool) {
	l.Info("页面处理完成", logrus.Fields{
		"页码":  pageNum,
		"总页数": totalPages,
		"进度":  fmt.Sprintf("%.1f%%", float64(pageNum)/float64(totalPages)*100),
		"段落数": paragraphs,
		"降级":  degraded,
	})
}

// LogTranslation 记录段落翻译
func (l *JobLogger) LogTranslation(pageNum int, originalText, translatedText string) {
	l.Debug("段落翻译", logrus.Fields{
		"页码":   pageNum,
		"原文":   truncateString(originalText, 50),
		"译文":   truncateString(translatedText, 50),
		"原文长度": len(originalText),
		"译文长度": len(translatedText),
	})
}

// LogOperationTiming 记录操作耗时
func (l *JobLogger) LogOperationTiming(operation string, duration time.Duration) {
	l.Info("操作耗时统计", logrus.Fields{
		"操作": operation,
		"耗时": duration.String(),
		"毫秒": duration.Milliseconds(),
	})
}

// Close 关闭日志文件
func (l *JobLogger) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.logFile == nil {
		return nil
	}
	l.entry.Info("任务日志正在关闭")
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// LogFilePath 日志文件路径
func (l *JobLogger) LogFilePath() string {
	if l.logFile != nil {
		return l.logFile.Name()
	}
	return ""
}

// truncateString 按字符截断
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
