package runner

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/queue"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/strategy"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/utils"
)

type fakeStore struct {
	mu        sync.Mutex
	runs      map[int64]*domain.Run
	datasets  map[int64]*domain.Dataset
	users     map[int64]*domain.User
	solutions map[int64]*domain.Solution
	metrics   []domain.GenerationMetrics
}

func newFakeStore() *fakeStore {
	rng := rand.New(rand.NewSource(7))
	return &fakeStore{
		runs: map[int64]*domain.Run{},
		datasets: map[int64]*domain.Dataset{
			1: {ID: 1, Name: "测试数据", Families: utils.GenerateRandomFamilies(rng, 300)},
		},
		users: map[int64]*domain.User{
			1: {ID: 1, FullName: "张三", Email: "zhangsan@example.com"},
		},
		solutions: map[int64]*domain.Solution{},
	}
}

func (s *fakeStore) GetRunByID(id int64) (*domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *run
	return &copied, nil
}

func (s *fakeStore) GetDatasetByID(id int64) (*domain.Dataset, error) {
	ds, ok := s.datasets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return ds, nil
}

func (s *fakeStore) GetUserByID(id int64) (*domain.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (s *fakeStore) StartRun(run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.runs[run.ID]
	if stored == nil || stored.Status != domain.RunStatusQueued {
		return sql.ErrNoRows
	}
	stored.Status = domain.RunStatusRunning
	run.Status = domain.RunStatusRunning
	return nil
}

func (s *fakeStore) FinishRun(run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

func (s *fakeStore) InsertSolution(solution *domain.Solution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.solutions[solution.RunID] = solution
	return nil
}

func (s *fakeStore) InsertGenerationMetrics(metrics *domain.GenerationMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = append(s.metrics, *metrics)
	return nil
}

func (s *fakeStore) addRun(params domain.RunParameters) domain.OptimizeJob {
	id := int64(len(s.runs) + 1)
	s.runs[id] = &domain.Run{
		ID:         id,
		JobID:      uuid.New(),
		DatasetID:  1,
		UserID:     1,
		Parameters: params,
		Status:     domain.RunStatusQueued,
	}
	return domain.OptimizeJob{JobID: s.runs[id].JobID, RunID: id}
}

type fakePublisher struct {
	queues   []string
	messages []domain.MailMessage
}

func (p *fakePublisher) PublishJSON(ctx context.Context, queue string, v any) error {
	p.queues = append(p.queues, queue)
	p.messages = append(p.messages, v.(domain.MailMessage))
	return nil
}

func testParameters() domain.RunParameters {
	return domain.RunParameters{
		PopulationSize: 6,
		Generations:    3,
		Clonator:       "basic",
		Mutator:        "preference",
		Selector:       "basic",
		SelectType:     strategy.SelectPositive,
		CloneCount:     2,
		MutationCount:  3,
		Seed:           42,
	}
}

func newTestRunner(store *fakeStore, publisher *fakePublisher) *Runner {
	return New(store, publisher,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithWorkers(2),
	)
}

func TestHandleSucceeds(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	job := store.addRun(testParameters())

	require.NoError(t, newTestRunner(store, publisher).Handle(context.Background(), job))

	run := store.runs[job.RunID]
	assert.Equal(t, domain.RunStatusSucceeded, run.Status)
	require.NotNil(t, run.BestFitness)
	assert.Empty(t, run.Error)

	solution := store.solutions[job.RunID]
	require.NotNil(t, solution)
	assert.Len(t, solution.Assignments, 300)
	assert.Equal(t, *run.BestFitness, solution.Fitness)
	require.NoError(t, utils.ValidateAssignment(store.datasets[1], solution.Assignments))

	require.Len(t, store.metrics, 3)
	for i, m := range store.metrics {
		assert.Equal(t, job.RunID, m.RunID)
		assert.Equal(t, i+1, m.Generation)
	}

	require.Len(t, publisher.messages, 1)
	assert.Equal(t, queue.EmailQueue, publisher.queues[0])
	assert.Equal(t, domain.MailTypeRunFinished, publisher.messages[0].Type)
	assert.Equal(t, "zhangsan@example.com", publisher.messages[0].To)
	data := publisher.messages[0].Data.(domain.RunFinishedMailData)
	assert.Equal(t, "测试数据", data.DatasetName)
	assert.Equal(t, 3, data.Generations)
}

func TestHandleIsReproducibleWithSeed(t *testing.T) {
	first := newFakeStore()
	second := newFakeStore()
	firstJob := first.addRun(testParameters())
	secondJob := second.addRun(testParameters())

	require.NoError(t, newTestRunner(first, &fakePublisher{}).Handle(context.Background(), firstJob))
	require.NoError(t, newTestRunner(second, &fakePublisher{}).Handle(context.Background(), secondJob))

	assert.Equal(t, first.solutions[1].Assignments, second.solutions[1].Assignments)
	assert.Equal(t, first.metrics, second.metrics)
}

func TestHandleMarksRunFailedOnUnknownStrategy(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	params := testParameters()
	params.Mutator = "nope"
	job := store.addRun(params)

	err := newTestRunner(store, publisher).Handle(context.Background(), job)
	require.ErrorIs(t, err, strategy.ErrUnknownStrategy)
	require.ErrorIs(t, err, domain.ErrConfiguration)

	run := store.runs[job.RunID]
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Nil(t, run.BestFitness)
	assert.Contains(t, run.Error, "nope")
	assert.Empty(t, store.solutions)

	require.Len(t, publisher.messages, 1)
	assert.Equal(t, domain.MailTypeRunFailed, publisher.messages[0].Type)
}

func TestHandleMarksRunFailedOnMissingDataset(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	job := store.addRun(testParameters())
	store.runs[job.RunID].DatasetID = 99

	err := newTestRunner(store, publisher).Handle(context.Background(), job)
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.Equal(t, domain.RunStatusFailed, store.runs[job.RunID].Status)

	require.Len(t, publisher.messages, 1)
	assert.Equal(t, "#99", publisher.messages[0].Data.(domain.RunFailedMailData).DatasetName)
}

func TestHandleRejectsStaleJobs(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	r := newTestRunner(store, publisher)
	job := store.addRun(testParameters())

	err := r.Handle(context.Background(), domain.OptimizeJob{JobID: uuid.New(), RunID: job.RunID})
	require.ErrorIs(t, err, ErrStaleJob)

	err = r.Handle(context.Background(), domain.OptimizeJob{JobID: job.JobID, RunID: 42})
	require.ErrorIs(t, err, ErrStaleJob)

	require.NoError(t, r.Handle(context.Background(), job))
	// 同一个任务重复投递时不会再次运行
	err = r.Handle(context.Background(), job)
	require.ErrorIs(t, err, ErrStaleJob)

	assert.Len(t, publisher.messages, 1)
}

func TestHandleCancelled(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	job := store.addRun(testParameters())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestRunner(store, publisher).Handle(ctx, job)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.RunStatusFailed, store.runs[job.RunID].Status)
	assert.Len(t, publisher.messages, 1)
}
