package store

import (
	"sort"
	"sync"
	"time"

	"ocr-translator/models"
)

// TaskStore 任务记录存储，仅在进程生命周期内有效
type TaskStore interface {
	Get(id string) (models.TranslateTask, bool)
	Set(task models.TranslateTask)
	List(owner string) []models.TranslateTask
	Update(id string, fn func(*models.TranslateTask)) (models.TranslateTask, bool)
	Delete(id string) bool
	// OlderThan 返回在 before 之前创建的任务
	OlderThan(before time.Time) []models.TranslateTask
}

// MemoryStore 基于 map 的任务存储
type MemoryStore struct {
	tasks map[string]*models.TranslateTask
	mu    sync.RWMutex
	now   func() time.Time
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]*models.TranslateTask),
		now:   time.Now,
	}
}

// Get 获取任务副本
func (s *MemoryStore) Get(id string) (models.TranslateTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return models.TranslateTask{}, false
	}
	return clone(task), true
}

// Set 新增或覆盖任务
func (s *MemoryStore) Set(task models.TranslateTask) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	task.SetProgress(task.Progress)
	c := clone(&task)
	s.tasks[task.ID] = &c
}

// List 列出某个会话的任务，按创建时间倒序；owner 为空时列出全部
func (s *MemoryStore) List(owner string) []models.TranslateTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]models.TranslateTask, 0)
	for _, task := range s.tasks {
		if owner == "" || task.Owner == owner {
			tasks = append(tasks, clone(task))
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks
}

// Update 在锁内修改任务，返回修改后的副本
func (s *MemoryStore) Update(id string, fn func(*models.TranslateTask)) (models.TranslateTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return models.TranslateTask{}, false
	}
	fn(task)
	task.ID = id
	task.SetProgress(task.Progress)
	task.UpdatedAt = s.now()
	return clone(task), true
}

// Delete 删除任务
func (s *MemoryStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

// OlderThan 实现 TaskStore
func (s *MemoryStore) OlderThan(before time.Time) []models.TranslateTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tasks []models.TranslateTask
	for _, task := range s.tasks {
		if task.CreatedAt.Before(before) {
			tasks = append(tasks, clone(task))
		}
	}
	return tasks
}

func clone(t *models.TranslateTask) models.TranslateTask {
	c := *t
	if t.DegradedPages != nil {
		c.DegradedPages = append([]int(nil), t.DegradedPages...)
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return c
}
