package aws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"proof-engine/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	calls       []*sns.PublishInput
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.calls = append(m.calls, params)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, params, optFns...)
	}
	return &sns.PublishOutput{}, nil
}

func TestNotifyGraduated(t *testing.T) {
	mock := &MockSNSService{}
	notifier := NewGraduationNotifier(mock, "arn:aws:sns:us-east-1:123456789012:graduations")

	ratio := 0.8
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	widget := &models.WidgetConfig{ID: "w-1", WebsiteID: "site-1", BusinessType: "saas", TargetRatio: &ratio, Graduated: true, GraduatedAt: &at}
	status := &models.GraduationStatus{WidgetID: "w-1", NaturalCount: 60, GraduationProgress: 100}

	require.NoError(t, notifier.NotifyGraduated(context.Background(), widget, status))
	require.Len(t, mock.calls, 1)

	in := mock.calls[0]
	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:graduations", *in.TopicArn)
	assert.Equal(t, "w-1", *in.MessageAttributes["widgetId"].StringValue)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(*in.Message), &body))
	assert.Equal(t, "widget.graduated", body["type"])
	assert.Equal(t, 0.8, body["targetRatio"])
	assert.Equal(t, float64(60), body["naturalCount"])
}

func TestNotifyGraduated_PublishError(t *testing.T) {
	mock := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	notifier := NewGraduationNotifier(mock, "arn")

	err := notifier.NotifyGraduated(context.Background(), &models.WidgetConfig{ID: "w-1"}, &models.GraduationStatus{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
