package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kernelworks/kernelbot/internal/domain"
	"github.com/kernelworks/kernelbot/internal/repository"
)

// MockSourceRepository is a mock implementation of SourceRepositoryInterface
type MockSourceRepository struct {
	mock.Mock
}

func (m *MockSourceRepository) Create(ctx context.Context, s *domain.Source, embedding []float32) error {
	args := m.Called(ctx, s, embedding)
	return args.Error(0)
}

func (m *MockSourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Source), args.Error(1)
}

func (m *MockSourceRepository) List(ctx context.Context) ([]*domain.Source, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Source), args.Error(1)
}

func (m *MockSourceRepository) Update(ctx context.Context, s *domain.Source, embedding []float32) error {
	args := m.Called(ctx, s, embedding)
	return args.Error(0)
}

func (m *MockSourceRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSourceRepository) SearchByEmbedding(ctx context.Context, embedding []float32, limit int) ([]repository.ScoredSource, error) {
	args := m.Called(ctx, embedding, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.ScoredSource), args.Error(1)
}

// MockEmbedder is a mock implementation of EmbedderInterface
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type fixedUUIDGen struct {
	id string
}

func (g fixedUUIDGen) NewString() string { return g.id }

func TestKnowledgeService_Create_Success(t *testing.T) {
	mockRepo := new(MockSourceRepository)
	mockEmbedder := new(MockEmbedder)
	embedding := []float32{0.1, 0.2}

	mockEmbedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(embedding, nil)
	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(s *domain.Source) bool {
		return s.ID == "src-1" && s.Title == "Hogwarts"
	}), embedding).Return(nil)

	svc := NewKnowledgeServiceWithUUIDGen(mockRepo, mockEmbedder, fixedUUIDGen{id: "src-1"})
	source, err := svc.Create(context.Background(), CreateSourceInput{
		Title:   "Hogwarts",
		URL:     "https://example.com/hogwarts",
		Content: "Hogwarts is a school of witchcraft and wizardry.",
	})

	require.NoError(t, err)
	assert.Equal(t, "src-1", source.ID)
	mockRepo.AssertExpectations(t)
	mockEmbedder.AssertExpectations(t)
}

func TestKnowledgeService_Create_EmbedFailureStillCreates(t *testing.T) {
	mockRepo := new(MockSourceRepository)
	mockEmbedder := new(MockEmbedder)

	mockEmbedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))
	mockRepo.On("Create", mock.Anything, mock.Anything, []float32(nil)).Return(nil)

	svc := NewKnowledgeServiceWithUUIDGen(mockRepo, mockEmbedder, fixedUUIDGen{id: "src-1"})
	_, err := svc.Create(context.Background(), CreateSourceInput{
		Title:   "Hogwarts",
		URL:     "https://example.com/hogwarts",
		Content: "Hogwarts is a school of witchcraft and wizardry.",
	})

	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestKnowledgeService_Create_ValidationError(t *testing.T) {
	mockRepo := new(MockSourceRepository)
	mockEmbedder := new(MockEmbedder)

	svc := NewKnowledgeServiceWithUUIDGen(mockRepo, mockEmbedder, fixedUUIDGen{id: "src-1"})
	_, err := svc.Create(context.Background(), CreateSourceInput{Title: "Hogwarts"})

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestKnowledgeService_Update_NotFound(t *testing.T) {
	mockRepo := new(MockSourceRepository)
	mockEmbedder := new(MockEmbedder)

	mockRepo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrSourceNotFound)

	svc := NewKnowledgeService(mockRepo, mockEmbedder)
	_, err := svc.Update(context.Background(), UpdateSourceInput{SourceID: "missing"})

	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestKnowledgeService_Update_ReEmbeds(t *testing.T) {
	mockRepo := new(MockSourceRepository)
	mockEmbedder := new(MockEmbedder)
	existing := &domain.Source{
		ID:      "src-1",
		Title:   "Hogwarts",
		URL:     "https://example.com/hogwarts",
		Content: "Old content.",
	}
	embedding := []float32{0.3}

	mockRepo.On("GetByID", mock.Anything, "src-1").Return(existing, nil)
	mockEmbedder.On("GenerateEmbedding", mock.Anything, "Hogwarts\n\nNew content.").Return(embedding, nil)
	mockRepo.On("Update", mock.Anything, mock.MatchedBy(func(s *domain.Source) bool {
		return s.Content == "New content."
	}), embedding).Return(nil)

	svc := NewKnowledgeService(mockRepo, mockEmbedder)
	source, err := svc.Update(context.Background(), UpdateSourceInput{SourceID: "src-1", Content: "New content."})

	require.NoError(t, err)
	assert.Equal(t, "New content.", source.Content)
	mockRepo.AssertExpectations(t)
	mockEmbedder.AssertExpectations(t)
}

func TestKnowledgeService_Research_Success(t *testing.T) {
	mockRepo := new(MockSourceRepository)
	mockEmbedder := new(MockEmbedder)
	embedding := []float32{0.1, 0.2}
	scored := []repository.ScoredSource{
		{
			Source: &domain.Source{
				ID:      "src-1",
				Title:   "Wizard Biographies",
				URL:     "https://example.com/biographies",
				Content: "Harry Potter was born on 31 July 1980.",
			},
			Score: 0.92,
		},
	}

	mockEmbedder.On("GenerateEmbedding", mock.Anything, "when was Harry Potter born").Return(embedding, nil)
	mockRepo.On("SearchByEmbedding", mock.Anything, embedding, DefaultSearchLimit).Return(scored, nil)

	svc := NewKnowledgeService(mockRepo, mockEmbedder)
	answer, citations, err := svc.Research(context.Background(), "when was Harry Potter born")

	require.NoError(t, err)
	assert.Contains(t, answer, "31 July 1980")
	require.Len(t, citations, 1)
	assert.Equal(t, "Wizard Biographies", citations[0].Title)
	assert.Equal(t, "https://example.com/biographies", citations[0].URL)
}

func TestKnowledgeService_Research_NoResults(t *testing.T) {
	mockRepo := new(MockSourceRepository)
	mockEmbedder := new(MockEmbedder)

	mockEmbedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	mockRepo.On("SearchByEmbedding", mock.Anything, mock.Anything, DefaultSearchLimit).Return([]repository.ScoredSource{}, nil)

	svc := NewKnowledgeService(mockRepo, mockEmbedder)
	answer, citations, err := svc.Research(context.Background(), "unknown topic")

	require.NoError(t, err)
	assert.Equal(t, "No relevant sources found.", answer)
	assert.Empty(t, citations)
}

func TestKnowledgeService_Research_EmbedError(t *testing.T) {
	mockRepo := new(MockSourceRepository)
	mockEmbedder := new(MockEmbedder)

	mockEmbedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	svc := NewKnowledgeService(mockRepo, mockEmbedder)
	_, _, err := svc.Research(context.Background(), "query")

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeLLM, domainErr.Code)
	mockRepo.AssertNotCalled(t, "SearchByEmbedding", mock.Anything, mock.Anything, mock.Anything)
}
