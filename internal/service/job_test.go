package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/wayfinderhq/wayfinder/internal/domain/model"
	"github.com/wayfinderhq/wayfinder/internal/mocks"
)

func newJobServiceWithMock(t *testing.T, clock func() time.Time) (*JobService, *mocks.MockJobRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := MustNewJobService(JobServiceOptions{Repo: repo, Clock: clock})
	return svc, repo
}

func TestNewJobService_RequiresRepo(t *testing.T) {
	_, err := NewJobService(JobServiceOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JobRepository is required")
}

func TestJobService_Create(t *testing.T) {
	req := &model.CreateJobRequest{OwnerID: "u-1", RequestID: "r-1"}

	t.Run("created", func(t *testing.T) {
		svc, repo := newJobServiceWithMock(t, nil)
		repo.EXPECT().CreateIfAbsent(gomock.Any(), req).Return(true, nil)

		created, err := svc.Create(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("already exists", func(t *testing.T) {
		svc, repo := newJobServiceWithMock(t, nil)
		repo.EXPECT().CreateIfAbsent(gomock.Any(), req).Return(false, nil)

		created, err := svc.Create(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("store failure propagates", func(t *testing.T) {
		svc, repo := newJobServiceWithMock(t, nil)
		repo.EXPECT().CreateIfAbsent(gomock.Any(), req).Return(false, errors.New("db down"))

		_, err := svc.Create(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create job")
	})
}

func TestAppendProgress_StampsAndTrims(t *testing.T) {
	clock := func() time.Time {
		return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	}
	svc, repo := newJobServiceWithMock(t, clock)

	repo.EXPECT().
		AppendProgress(gomock.Any(), "u-1", "r-1", "09:26:53  STATUS: researching flights").
		Return(nil)

	svc.AppendProgress(context.Background(), "u-1", "r-1", "  STATUS: researching flights \n")
}

func TestAppendProgress_TruncatesLongLinesByRune(t *testing.T) {
	clock := func() time.Time {
		return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	}
	svc, repo := newJobServiceWithMock(t, clock)

	// Multi-byte runes prove the cap counts runes, not bytes.
	line := strings.Repeat("é", maxProgressLineRunes+25)

	var stored string
	repo.EXPECT().
		AppendProgress(gomock.Any(), "u-1", "r-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _, got string) error {
			stored = got
			return nil
		})

	svc.AppendProgress(context.Background(), "u-1", "r-1", line)

	require.True(t, strings.HasPrefix(stored, "09:26:53  "))
	require.True(t, strings.HasSuffix(stored, " ..."))
	// timestamp prefix + capped line + ellipsis marker
	assert.Equal(t, 10+maxProgressLineRunes+4, utf8.RuneCountInString(stored))
	assert.Equal(t, "09:26:53  "+strings.Repeat("é", maxProgressLineRunes)+" ...", stored)
}

func TestAppendProgress_DropsBlankLines(t *testing.T) {
	svc, _ := newJobServiceWithMock(t, nil)

	// No repo expectation: a blank line must never reach the store.
	svc.AppendProgress(context.Background(), "u-1", "r-1", "")
	svc.AppendProgress(context.Background(), "u-1", "r-1", "   \n\t")
}

func TestAppendProgress_SwallowsStoreFailure(t *testing.T) {
	svc, repo := newJobServiceWithMock(t, nil)
	repo.EXPECT().
		AppendProgress(gomock.Any(), "u-1", "r-1", gomock.Any()).
		Return(errors.New("db down"))

	// Must not panic or surface the error; progress is best-effort.
	svc.AppendProgress(context.Background(), "u-1", "r-1", "STATUS: still here")
}

func TestJobService_Complete(t *testing.T) {
	req := &model.CompleteJobRequest{
		OwnerID:   "u-1",
		RequestID: "r-1",
		Status:    model.JobStatusSucceeded,
	}

	t.Run("applied", func(t *testing.T) {
		svc, repo := newJobServiceWithMock(t, nil)
		repo.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(true, nil)

		assert.True(t, svc.Complete(context.Background(), req))
	})

	t.Run("guard rejected", func(t *testing.T) {
		svc, repo := newJobServiceWithMock(t, nil)
		repo.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(false, nil)

		assert.False(t, svc.Complete(context.Background(), req))
	})

	t.Run("store failure swallowed", func(t *testing.T) {
		svc, repo := newJobServiceWithMock(t, nil)
		repo.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(false, errors.New("db down"))

		assert.False(t, svc.Complete(context.Background(), req))
	})

	t.Run("nil request", func(t *testing.T) {
		svc, _ := newJobServiceWithMock(t, nil)

		assert.False(t, svc.Complete(context.Background(), nil))
	})
}

func TestComplete_CapsFinalMessage(t *testing.T) {
	svc, repo := newJobServiceWithMock(t, nil)

	var stored *model.CompleteJobRequest
	repo.EXPECT().
		Complete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, got *model.CompleteJobRequest) (bool, error) {
			stored = got
			return true, nil
		})

	req := &model.CompleteJobRequest{
		OwnerID:      "u-1",
		RequestID:    "r-1",
		Status:       model.JobStatusFailed,
		FinalMessage: strings.Repeat("a", maxFinalMessageRunes+10),
	}
	require.True(t, svc.Complete(context.Background(), req))

	require.NotNil(t, stored)
	assert.Equal(t, maxFinalMessageRunes, utf8.RuneCountInString(stored.FinalMessage))
	// The caller's request is copied before capping, never mutated.
	assert.Equal(t, maxFinalMessageRunes+10, utf8.RuneCountInString(req.FinalMessage))
}

func TestJobService_View(t *testing.T) {
	svc, repo := newJobServiceWithMock(t, nil)
	repo.EXPECT().
		Get(gomock.Any(), "u-1", "r-1").
		Return(&model.Job{
			OwnerID: "u-1",
			JobKey:  model.JobKeyFor("r-1"),
			Status:  model.JobStatusRunning,
		}, nil)

	view, err := svc.View(context.Background(), "u-1", "r-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, view.Status)
	// A job with no progress yet projects an empty array, never null.
	require.NotNil(t, view.Progress)
	assert.Empty(t, view.Progress)
}

func TestJobService_Get_WrapsStoreError(t *testing.T) {
	svc, repo := newJobServiceWithMock(t, nil)
	repo.EXPECT().Get(gomock.Any(), "u-1", "r-1").Return(nil, errors.New("db down"))

	_, err := svc.Get(context.Background(), "u-1", "r-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get job")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 10))
	assert.Equal(t, "ab ...", truncateRunes("abcdef", 2))
	assert.Equal(t, "héllo", truncateRunes("héllo", 5))
	assert.Equal(t, "éé ...", truncateRunes("ééééé", 2))
}

func TestCapRunes(t *testing.T) {
	assert.Equal(t, "short", capRunes("short", 10))
	assert.Equal(t, "ab", capRunes("abcdef", 2))
	assert.Equal(t, "éé", capRunes("ééééé", 2))
}
