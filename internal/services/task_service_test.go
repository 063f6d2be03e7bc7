package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/task-tracker/internal/models"
	"github.com/yukikurage/task-tracker/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// recordingCache is an in-memory TaskListCache that counts invalidations
type recordingCache struct {
	mu            sync.Mutex
	tasks         []models.Task
	stored        bool
	invalidations int
	getErr        error
}

func (c *recordingCache) GetTasks(context.Context) ([]models.Task, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	return c.tasks, c.stored, nil
}

func (c *recordingCache) SetTasks(_ context.Context, tasks []models.Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = tasks
	c.stored = true
	return nil
}

func (c *recordingCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = nil
	c.stored = false
	c.invalidations++
	return nil
}

// pausingRepository holds the first List call after the rows are read until
// release is closed.
type pausingRepository struct {
	repository.TaskRepository
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newPausingRepository(inner repository.TaskRepository) *pausingRepository {
	return &pausingRepository{
		TaskRepository: inner,
		read:           make(chan struct{}),
		release:        make(chan struct{}),
	}
}

func (r *pausingRepository) List(ctx context.Context) ([]models.Task, error) {
	tasks, err := r.TaskRepository.List(ctx)
	r.once.Do(func() {
		close(r.read)
		<-r.release
	})
	return tasks, err
}

// failingCreateRepository fails every Create after the first allowed ones.
type failingCreateRepository struct {
	repository.TaskRepository
	allowed int
}

func (r *failingCreateRepository) Create(ctx context.Context, task *models.Task) error {
	if r.allowed == 0 {
		return errors.New("disk I/O error")
	}
	r.allowed--
	return r.TaskRepository.Create(ctx, task)
}

type fakeGenerator struct {
	tasks []GeneratedTask
	err   error
}

func (g *fakeGenerator) GenerateTasksFromText(context.Context, string) ([]GeneratedTask, error) {
	return g.tasks, g.err
}

// TaskServiceTestSuite runs TaskService against an in-memory SQLite database
type TaskServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	cache   *recordingCache
	service *TaskService
	ctx     context.Context
}

func (suite *TaskServiceTestSuite) SetupTest() {
	var err error

	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	suite.Require().NoError(err)
	suite.Require().NoError(suite.db.AutoMigrate(&models.Task{}))

	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	suite.cache = &recordingCache{}
	suite.service = NewTaskService(repository.NewTaskRepository(suite.db), suite.cache, nil)
	suite.ctx = context.Background()
}

func (suite *TaskServiceTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *TaskServiceTestSuite) createTask(name string) *models.Task {
	task := &models.Task{Name: name, Description: "Test Description"}
	suite.Require().NoError(suite.service.CreateTask(suite.ctx, task))
	return task
}

func (suite *TaskServiceTestSuite) countTasks() int64 {
	var count int64
	suite.Require().NoError(suite.db.Model(&models.Task{}).Count(&count).Error)
	return count
}

func (suite *TaskServiceTestSuite) TestCreateTask_AssignsSlugFromName() {
	task := suite.createTask("Read Chapter 1")

	assert.Equal(suite.T(), "read-chapter-1", task.Slug)
	assert.Nil(suite.T(), task.Done)
	assert.Equal(suite.T(), int64(1), suite.countTasks())
	assert.Equal(suite.T(), 1, suite.cache.invalidations)
}

func (suite *TaskServiceTestSuite) TestCreateTask_IgnoresClientSlug() {
	task := &models.Task{Name: "Write notes", Description: "d", Slug: "custom"}
	suite.Require().NoError(suite.service.CreateTask(suite.ctx, task))

	assert.Equal(suite.T(), "write-notes", task.Slug)
}

func (suite *TaskServiceTestSuite) TestCreateTask_SlugCollision() {
	suite.createTask("Read Chapter 1")

	err := suite.service.CreateTask(suite.ctx, &models.Task{Name: "read chapter 1!", Description: "d"})
	assert.ErrorIs(suite.T(), err, ErrSlugTaken)
	assert.Equal(suite.T(), int64(1), suite.countTasks())
}

func (suite *TaskServiceTestSuite) TestCreateTask_EmptySlug() {
	err := suite.service.CreateTask(suite.ctx, &models.Task{Name: "???", Description: "d"})
	assert.ErrorIs(suite.T(), err, ErrSlugEmpty)
	assert.Zero(suite.T(), suite.countTasks())
}

func (suite *TaskServiceTestSuite) TestCreateTask_SlugTooLong() {
	// Each ligature decomposes to three ASCII letters.
	name := strings.Repeat("\ufb03", 50)
	err := suite.service.CreateTask(suite.ctx, &models.Task{Name: name, Description: "d"})
	assert.ErrorIs(suite.T(), err, ErrSlugTooLong)
	assert.Zero(suite.T(), suite.countTasks())
}

func (suite *TaskServiceTestSuite) TestGetTask() {
	created := suite.createTask("Read Chapter 1")

	task, err := suite.service.GetTask(suite.ctx, "read-chapter-1")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), created.ID, task.ID)

	_, err = suite.service.GetTask(suite.ctx, "unknown")
	assert.ErrorIs(suite.T(), err, ErrTaskNotFound)
}

func (suite *TaskServiceTestSuite) TestUpdateTask_RecomputesSlug() {
	task := suite.createTask("Read Chapter 1")

	task.Name = "Read Chapter 2"
	suite.Require().NoError(suite.service.UpdateTask(suite.ctx, task))
	assert.Equal(suite.T(), "read-chapter-2", task.Slug)

	_, err := suite.service.GetTask(suite.ctx, "read-chapter-1")
	assert.ErrorIs(suite.T(), err, ErrTaskNotFound)

	found, err := suite.service.GetTask(suite.ctx, "read-chapter-2")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), task.ID, found.ID)
}

func (suite *TaskServiceTestSuite) TestUpdateTask_KeepsOwnSlug() {
	task := suite.createTask("Read Chapter 1")

	task.Description = "pages 1-40"
	suite.Require().NoError(suite.service.UpdateTask(suite.ctx, task))
	assert.Equal(suite.T(), "read-chapter-1", task.Slug)
}

func (suite *TaskServiceTestSuite) TestUpdateTask_SlugCollision() {
	suite.createTask("First")
	second := suite.createTask("Second")

	second.Name = "first"
	err := suite.service.UpdateTask(suite.ctx, second)
	assert.ErrorIs(suite.T(), err, ErrSlugTaken)

	found, err := suite.service.GetTask(suite.ctx, "second")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), "Second", found.Name)
}

func (suite *TaskServiceTestSuite) TestUpdateTask_PreservesCreatedAt() {
	task := suite.createTask("Read Chapter 1")
	createdAt := task.CreatedAt
	updatedAt := task.UpdatedAt

	time.Sleep(5 * time.Millisecond)
	task.Description = "changed"
	suite.Require().NoError(suite.service.UpdateTask(suite.ctx, task))

	found, err := suite.service.GetTask(suite.ctx, task.Slug)
	suite.Require().NoError(err)
	assert.True(suite.T(), createdAt.Equal(found.CreatedAt))
	assert.True(suite.T(), found.UpdatedAt.After(updatedAt))
}

func (suite *TaskServiceTestSuite) TestToggleTask_StateMachine() {
	task := suite.createTask("Read Chapter 1")

	suite.Require().NoError(suite.service.ToggleTask(suite.ctx, task))
	found, err := suite.service.GetTask(suite.ctx, task.Slug)
	suite.Require().NoError(err)
	suite.Require().NotNil(found.Done)
	assert.True(suite.T(), *found.Done)

	suite.Require().NoError(suite.service.ToggleTask(suite.ctx, found))
	found, err = suite.service.GetTask(suite.ctx, task.Slug)
	suite.Require().NoError(err)
	suite.Require().NotNil(found.Done)
	assert.False(suite.T(), *found.Done)

	suite.Require().NoError(suite.service.ToggleTask(suite.ctx, found))
	found, err = suite.service.GetTask(suite.ctx, task.Slug)
	suite.Require().NoError(err)
	assert.True(suite.T(), *found.Done)
}

func (suite *TaskServiceTestSuite) TestDeleteTask() {
	task := suite.createTask("Read Chapter 1")

	suite.Require().NoError(suite.service.DeleteTask(suite.ctx, task))

	_, err := suite.service.GetTask(suite.ctx, "read-chapter-1")
	assert.ErrorIs(suite.T(), err, ErrTaskNotFound)

	assert.ErrorIs(suite.T(), suite.service.DeleteTask(suite.ctx, task), ErrTaskNotFound)
}

func (suite *TaskServiceTestSuite) TestListTasks_UsesCache() {
	suite.createTask("First")
	suite.createTask("Second")

	tasks, count, err := suite.service.ListTasks(suite.ctx)
	suite.Require().NoError(err)
	assert.Len(suite.T(), tasks, 2)
	assert.Equal(suite.T(), int64(2), count)
	assert.True(suite.T(), suite.cache.stored)

	// A row written behind the service's back stays invisible until a mutation invalidates the cache.
	suite.Require().NoError(suite.db.Create(&models.Task{Name: "Hidden", Description: "d", Slug: "hidden"}).Error)
	tasks, _, err = suite.service.ListTasks(suite.ctx)
	suite.Require().NoError(err)
	assert.Len(suite.T(), tasks, 2)

	suite.createTask("Third")
	tasks, count, err = suite.service.ListTasks(suite.ctx)
	suite.Require().NoError(err)
	assert.Len(suite.T(), tasks, 4)
	assert.Equal(suite.T(), int64(4), count)
}

func (suite *TaskServiceTestSuite) TestListTasks_CacheErrorFallsBackToDatabase() {
	suite.createTask("First")
	suite.cache.getErr = errors.New("redis down")

	tasks, count, err := suite.service.ListTasks(suite.ctx)
	suite.Require().NoError(err)
	assert.Len(suite.T(), tasks, 1)
	assert.Equal(suite.T(), int64(1), count)
}

func (suite *TaskServiceTestSuite) TestListTasks_MutationDuringQueryIsNotCached() {
	repo := newPausingRepository(repository.NewTaskRepository(suite.db))
	service := NewTaskService(repo, suite.cache, nil)

	done := make(chan error, 1)
	go func() {
		_, _, err := service.ListTasks(suite.ctx)
		done <- err
	}()

	<-repo.read
	suite.Require().NoError(service.CreateTask(suite.ctx, &models.Task{Name: "Read Chapter 1", Description: "pages 1-20"}))
	close(repo.release)
	suite.Require().NoError(<-done)

	tasks, count, err := service.ListTasks(suite.ctx)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(1), count)
	suite.Require().Len(tasks, 1)
	assert.Equal(suite.T(), "read-chapter-1", tasks[0].Slug)
}

func (suite *TaskServiceTestSuite) TestListTasks_SurvivesCallerCancellation() {
	suite.createTask("First")

	ctx, cancel := context.WithCancel(suite.ctx)
	cancel()

	tasks, _, err := suite.service.ListTasks(ctx)
	suite.Require().NoError(err)
	assert.Len(suite.T(), tasks, 1)
}

func (suite *TaskServiceTestSuite) TestGenerateTasks_PartialFailureReturnsCreated() {
	repo := &failingCreateRepository{TaskRepository: repository.NewTaskRepository(suite.db), allowed: 1}
	service := NewTaskService(repo, suite.cache, &fakeGenerator{tasks: []GeneratedTask{
		{Name: "Call the dentist"},
		{Name: "Water plants"},
	}})

	created, err := service.GenerateTasks(suite.ctx, "notes")
	assert.Error(suite.T(), err)
	suite.Require().Len(created, 1)
	assert.Equal(suite.T(), "call-the-dentist", created[0].Slug)
	assert.Equal(suite.T(), int64(1), suite.countTasks())
}

func (suite *TaskServiceTestSuite) TestGenerateTasks_NotConfigured() {
	_, err := suite.service.GenerateTasks(suite.ctx, "buy milk tomorrow")
	assert.ErrorIs(suite.T(), err, ErrAIServiceNotConfigured)
	assert.False(suite.T(), suite.service.GenerationEnabled())
}

func (suite *TaskServiceTestSuite) TestGenerateTasks_CreatesTasks() {
	suite.createTask("Buy milk")

	deadline := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	stale := time.Now().Add(-72 * time.Hour)
	generator := &fakeGenerator{tasks: []GeneratedTask{
		{Name: "Buy milk", Description: "duplicate of an existing task"},
		{Name: "Call the dentist", Description: "book a check-up", CompleteBefore: &deadline},
		{Name: "Water plants", CompleteBefore: &stale},
		{Name: "   "},
	}}
	service := NewTaskService(repository.NewTaskRepository(suite.db), suite.cache, generator)
	assert.True(suite.T(), service.GenerationEnabled())

	created, err := service.GenerateTasks(suite.ctx, "some notes")
	suite.Require().NoError(err)
	suite.Require().Len(created, 2)

	assert.Equal(suite.T(), "call-the-dentist", created[0].Slug)
	suite.Require().NotNil(created[0].CompleteBefore)
	assert.True(suite.T(), deadline.Equal(*created[0].CompleteBefore))

	assert.Equal(suite.T(), "water-plants", created[1].Slug)
	assert.Equal(suite.T(), "Water plants", created[1].Description)
	assert.Nil(suite.T(), created[1].CompleteBefore)

	assert.Equal(suite.T(), int64(3), suite.countTasks())
}

func (suite *TaskServiceTestSuite) TestGenerateTasks_Errors() {
	service := NewTaskService(repository.NewTaskRepository(suite.db), suite.cache, &fakeGenerator{})
	_, err := service.GenerateTasks(suite.ctx, "notes")
	assert.ErrorIs(suite.T(), err, ErrAINoTasksGenerated)

	_, err = service.GenerateTasks(suite.ctx, "  ")
	assert.ErrorIs(suite.T(), err, ErrGenerateTextRequired)

	service = NewTaskService(repository.NewTaskRepository(suite.db), suite.cache, &fakeGenerator{
		tasks: []GeneratedTask{{Name: "!!!"}},
	})
	_, err = service.GenerateTasks(suite.ctx, "notes")
	assert.ErrorIs(suite.T(), err, ErrAINoValidTasks)

	service = NewTaskService(repository.NewTaskRepository(suite.db), suite.cache, &fakeGenerator{
		err: errors.New("upstream timeout"),
	})
	_, err = service.GenerateTasks(suite.ctx, "notes")
	assert.Error(suite.T(), err)
}

func TestTaskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceTestSuite))
}

func TestParseGeneratedTasks(t *testing.T) {
	content := "```json\n[{\"name\":\"Call mom\",\"description\":\"weekly call\",\"complete_before\":\"2026-10-20T18:00:00Z\"},{\"name\":\"Stretch\",\"description\":\"\",\"complete_before\":null}]\n```"

	tasks, err := parseGeneratedTasks(content)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Call mom", tasks[0].Name)
	require.NotNil(t, tasks[0].CompleteBefore)
	assert.Equal(t, 2026, tasks[0].CompleteBefore.Year())
	assert.Nil(t, tasks[1].CompleteBefore)

	_, err = parseGeneratedTasks("not json")
	assert.Error(t, err)
}
