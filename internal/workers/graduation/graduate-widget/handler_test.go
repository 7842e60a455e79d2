package graduatewidget

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"proof-engine/internal/common/config"
	"proof-engine/internal/common/errors"
	"proof-engine/internal/common/logger"
	"proof-engine/internal/engine/graduation"
	"proof-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGraduator struct {
	mock.Mock
}

func (m *MockGraduator) AutoGraduate(ctx context.Context, widgetID string) (*graduation.Outcome, error) {
	args := m.Called(ctx, widgetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*graduation.Outcome), args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "widget-graduation",
		ElementId:          "Activity_GraduateWidget",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T, g Graduator) *Handler {
	t.Helper()
	h, err := NewHandler(DefaultConfig(), g, logger.NewTestLogger(t))
	require.NoError(t, err)
	return h
}

func TestNewHandler_InvalidConfig(t *testing.T) {
	_, err := NewHandler(&Config{Enabled: true, MaxJobsActive: 1}, &MockGraduator{}, logger.NewNoOpLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout must be positive")
}

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, &MockGraduator{})

	tests := []struct {
		name    string
		vars    map[string]interface{}
		want    string
		wantErr bool
	}{
		{name: "valid", vars: map[string]interface{}{"widgetId": "w-1", "other": true}, want: "w-1"},
		{name: "missing widget", vars: map[string]interface{}{"foo": "bar"}, wantErr: true},
		{name: "empty widget", vars: map[string]interface{}{"widgetId": ""}, wantErr: true},
		{name: "wrong type", vars: map[string]interface{}{"widgetId": 42}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := createMockJob(1, tt.vars)
			input, err := h.parseInput(job.GetVariables())
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, input.WidgetID)
		})
	}
}

func TestHandler_Execute(t *testing.T) {
	t.Run("graduates", func(t *testing.T) {
		g := &MockGraduator{}
		g.On("AutoGraduate", mock.Anything, "w-1").Return(&graduation.Outcome{
			WidgetID:    "w-1",
			Changed:     true,
			Graduated:   true,
			TargetRatio: 0.8,
			Status: &models.GraduationStatus{
				Ready:              true,
				GraduationProgress: 100,
				Health:             models.Health{Score: 72.5},
			},
		}, nil)

		out, err := newTestHandler(t, g).Execute(context.Background(), &Input{WidgetID: "w-1"})
		require.NoError(t, err)
		assert.True(t, out.Changed)
		assert.True(t, out.Graduated)
		assert.True(t, out.Ready)
		assert.Equal(t, 0.8, out.TargetRatio)
		assert.Equal(t, 72.5, out.HealthScore)
		g.AssertExpectations(t)
	})

	t.Run("lock held elsewhere completes unchanged", func(t *testing.T) {
		g := &MockGraduator{}
		g.On("AutoGraduate", mock.Anything, "w-2").Return(nil, errors.NewLockNotAcquiredError("graduation:w-2"))

		out, err := newTestHandler(t, g).Execute(context.Background(), &Input{WidgetID: "w-2"})
		require.NoError(t, err)
		assert.Equal(t, "w-2", out.WidgetID)
		assert.False(t, out.Changed)
	})

	t.Run("version conflict surfaces", func(t *testing.T) {
		g := &MockGraduator{}
		g.On("AutoGraduate", mock.Anything, "w-3").Return(nil, errors.NewVersionConflictError("w-3", 4))

		_, err := newTestHandler(t, g).Execute(context.Background(), &Input{WidgetID: "w-3"})
		assert.True(t, errors.Is(err, errors.ErrCodeVersionConflict))
	})

	t.Run("plain errors pass through", func(t *testing.T) {
		g := &MockGraduator{}
		g.On("AutoGraduate", mock.Anything, "w-4").Return(nil, fmt.Errorf("boom"))

		_, err := newTestHandler(t, g).Execute(context.Background(), &Input{WidgetID: "w-4"})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeInternal, errors.CodeOf(err))
	})
}

func TestConfigFrom(t *testing.T) {
	cfg := &config.Config{Workers: map[string]config.WorkerConfig{
		TaskType: {Enabled: false, MaxJobsActive: 2, Timeout: 5000},
	}}
	wc := ConfigFrom(cfg)
	assert.False(t, wc.Enabled)
	assert.Equal(t, 2, wc.MaxJobsActive)
	assert.Equal(t, 5*time.Second, wc.Timeout)

	def := ConfigFrom(&config.Config{})
	assert.True(t, def.Enabled)
	assert.Equal(t, 30*time.Second, def.Timeout)
	assert.NoError(t, def.Validate())
}
