// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"proof-engine/internal/models"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the subset of *sns.Client used here.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func NewSNSClient(ctx context.Context, region string) (*sns.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sns.NewFromConfig(cfg), nil
}

// GraduationNotifier publishes a notice to an SNS topic when a widget
// graduates.
type GraduationNotifier struct {
	api      SNSAPI
	topicARN string
}

func NewGraduationNotifier(api SNSAPI, topicARN string) *GraduationNotifier {
	return &GraduationNotifier{api: api, topicARN: topicARN}
}

type graduationNotice struct {
	Type               string    `json:"type"`
	WidgetID           string    `json:"widgetId"`
	WebsiteID          string    `json:"websiteId"`
	BusinessType       string    `json:"businessType"`
	TargetRatio        float64   `json:"targetRatio"`
	NaturalCount       int64     `json:"naturalCount"`
	GraduationProgress float64   `json:"graduationProgress"`
	HealthScore        float64   `json:"healthScore"`
	GraduatedAt        time.Time `json:"graduatedAt"`
}

func (n *GraduationNotifier) NotifyGraduated(ctx context.Context, widget *models.WidgetConfig, status *models.GraduationStatus) error {
	notice := graduationNotice{
		Type:               "widget.graduated",
		WidgetID:           widget.ID,
		WebsiteID:          widget.WebsiteID,
		BusinessType:       widget.BusinessType,
		NaturalCount:       status.NaturalCount,
		GraduationProgress: status.GraduationProgress,
		HealthScore:        status.Health.Score,
		GraduatedAt:        status.ComputedAt,
	}
	if widget.TargetRatio != nil {
		notice.TargetRatio = *widget.TargetRatio
	}
	if widget.GraduatedAt != nil {
		notice.GraduatedAt = *widget.GraduatedAt
	}

	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("encode graduation notice: %w", err)
	}

	_, err = n.api.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(n.topicARN),
		Subject:  awssdk.String("Widget graduated"),
		Message:  awssdk.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {DataType: awssdk.String("String"), StringValue: awssdk.String(notice.Type)},
			"widgetId":  {DataType: awssdk.String("String"), StringValue: awssdk.String(widget.ID)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish graduation notice: %w", err)
	}
	return nil
}
