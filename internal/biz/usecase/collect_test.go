package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/channel-curator/internal/biz/domain"
)

func newTestCollect(channels *mockChannelRepo, llm *mockLLMRepo, store *mockMessageRepo, publisher *mockPublisher) *CollectUsecase {
	rules := NewRuleFilter(RuleFilterConfig{MinLength: 10}, nil, nil)
	pipeline := NewFilterPipeline(store, rules, nil, nil)
	classifier := NewClassifierUsecase(llm, DefaultPrompts, ClassifierConfig{}, nil)
	return NewCollectUsecase(channels, pipeline, classifier, store, publisher, CollectConfig{}, nil)
}

func TestCollect_FetchFilterClassifySavePublish(t *testing.T) {
	channels := &mockChannelRepo{
		order: []string{"alpha", "broken", "beta"},
		history: map[string][]domain.Message{
			"alpha": {
				{Source: "alpha", Content: "Kubernetes 1.35 released with sidecar GA"},
				{Source: "alpha", Content: "hi"},
			},
			"beta": {
				{Source: "beta", Content: "Join now for free crypto giveaway!!!", MediaPath: "/tmp/p.jpg"},
				{Source: "beta", Content: "Postgres 18 brings async IO", MediaPath: "/tmp/pg.jpg"},
			},
		},
		errs: map[string]error{"broken": errors.New("channel private")},
	}
	llm := &mockLLMRepo{replies: []string{
		`{"category":"tech","label":"科技","confidence":0.9}`,
		`{"category":"spam","label":"垃圾信息","confidence":0.95}`,
		`{"category":"tech","label":"科技","confidence":0.8}`,
	}}
	store := newMockMessageRepo()
	publisher := &mockPublisher{}
	uc := newTestCollect(channels, llm, store, publisher)

	var stages []string
	report, err := uc.Collect(context.Background(), 50, true, func(r CollectReport) {
		if len(stages) == 0 || stages[len(stages)-1] != r.Stage {
			stages = append(stages, r.Stage)
		}
	})

	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 4, report.Fetched)
	assert.Equal(t, 3, report.Filtered)
	assert.Equal(t, 3, report.Classified)
	assert.Equal(t, 3, report.Saved)
	assert.Equal(t, 1, report.Spam)
	assert.Equal(t, 2, report.ToPublish)
	assert.Equal(t, 2, report.Published)
	assert.Equal(t, []string{StageFetch, StageFilter, StageClassify, StageSave, StagePublish, StageDone}, stages)

	require.Len(t, publisher.texts, 1)
	assert.Contains(t, publisher.texts[0], "Kubernetes 1.35 released with sidecar GA")
	assert.Contains(t, publisher.texts[0], "<i>来源: alpha</i>")
	assert.Equal(t, []string{"/tmp/pg.jpg"}, publisher.photos)
}

func TestCollect_WithoutPublish(t *testing.T) {
	channels := &mockChannelRepo{
		order:   []string{"alpha"},
		history: map[string][]domain.Message{"alpha": msgs("Kubernetes 1.35 released with sidecar GA")},
	}
	publisher := &mockPublisher{}
	uc := newTestCollect(channels, &mockLLMRepo{replies: []string{`{"category":"tech"}`}}, newMockMessageRepo(), publisher)

	report, err := uc.Collect(context.Background(), 10, false, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Saved)
	assert.Zero(t, report.Published)
	assert.Empty(t, publisher.texts)
}

func TestCollect_SecondRunSkipsKnownMessages(t *testing.T) {
	channels := &mockChannelRepo{
		order:   []string{"alpha"},
		history: map[string][]domain.Message{"alpha": msgs("Kubernetes 1.35 released with sidecar GA")},
	}
	llm := &mockLLMRepo{replies: []string{`{"category":"tech"}`}}
	store := newMockMessageRepo()
	uc := newTestCollect(channels, llm, store, nil)

	_, err := uc.Collect(context.Background(), 10, false, nil)
	require.NoError(t, err)
	report, err := uc.Collect(context.Background(), 10, false, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Fetched)
	assert.Zero(t, report.Filtered)
	assert.Equal(t, 1, llm.callCount())
}

func TestCollect_SaveErrorIsReturned(t *testing.T) {
	channels := &mockChannelRepo{
		order:   []string{"alpha"},
		history: map[string][]domain.Message{"alpha": msgs("Kubernetes 1.35 released with sidecar GA")},
	}
	store := newMockMessageRepo()
	store.saveErr = errors.New("disk full")
	uc := newTestCollect(channels, &mockLLMRepo{replies: []string{`{"category":"tech"}`}}, store, nil)

	_, err := uc.Collect(context.Background(), 10, false, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, store.saveErr)
}

func TestCollect_NoChannelSource(t *testing.T) {
	uc := NewCollectUsecase(nil, nil, nil, newMockMessageRepo(), nil, CollectConfig{}, nil)

	_, err := uc.Collect(context.Background(), 10, false, nil)

	assert.ErrorIs(t, err, ErrNoChannelSource)
}

func TestHandleLive(t *testing.T) {
	store := newMockMessageRepo()
	uc := newTestCollect(&mockChannelRepo{}, &mockLLMRepo{replies: []string{`{"category":"news","label":"新闻"}`}}, store, nil)

	uc.HandleLive(context.Background(), domain.Message{Source: "live", Content: "Breaking: markets rally on rate cut"})
	uc.HandleLive(context.Background(), domain.Message{Source: "live", Content: "short"})

	require.Len(t, store.saved, 1)
	assert.Equal(t, domain.CategoryNews, store.saved[0].Category)
}
