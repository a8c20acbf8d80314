package receiver

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hublink/hublink-go/pkg/message"
)

// ErrEmptyBody is returned when a service-bound message has no payload.
var ErrEmptyBody = errors.New("message body is empty")

// FeedbackStatus is the delivery outcome of a cloud-to-device message.
type FeedbackStatus string

// Feedback status codes reported by the hub.
const (
	FeedbackSuccess               FeedbackStatus = "Success"
	FeedbackExpired               FeedbackStatus = "Expired"
	FeedbackDeliveryCountExceeded FeedbackStatus = "DeliveryCountExceeded"
	FeedbackRejected              FeedbackStatus = "Rejected"
	FeedbackPurged                FeedbackStatus = "Purged"
)

// FeedbackRecord reports the outcome of one device-bound message.
type FeedbackRecord struct {
	OriginalMessageID  string         `json:"originalMessageId"`
	Description        string         `json:"description,omitempty"`
	DeviceGenerationID string         `json:"deviceGenerationId,omitempty"`
	DeviceID           string         `json:"deviceId"`
	EnqueuedTime       time.Time      `json:"enqueuedTimeUtc"`
	StatusCode         FeedbackStatus `json:"statusCode"`
}

// DecodeFeedback decodes a batch of feedback records from a message
// received on the feedback endpoint.
func DecodeFeedback(msg *message.Message) ([]FeedbackRecord, error) {
	if msg == nil || len(msg.Data) == 0 {
		return nil, ErrEmptyBody
	}
	var records []FeedbackRecord
	if err := json.Unmarshal(msg.Data, &records); err != nil {
		return nil, fmt.Errorf("decode feedback: %w", err)
	}
	return records, nil
}

// FileNotification reports an upload completed by a device.
type FileNotification struct {
	DeviceID        string    `json:"deviceId"`
	BlobURI         string    `json:"blobUri"`
	BlobName        string    `json:"blobName"`
	LastUpdatedTime time.Time `json:"lastUpdatedTime"`
	BlobSizeInBytes int64     `json:"blobSizeInBytes"`
	EnqueuedTime    time.Time `json:"enqueuedTimeUtc"`
}

// DecodeFileNotification decodes a message received on the file
// notification endpoint.
func DecodeFileNotification(msg *message.Message) (*FileNotification, error) {
	if msg == nil || len(msg.Data) == 0 {
		return nil, ErrEmptyBody
	}
	var n FileNotification
	if err := json.Unmarshal(msg.Data, &n); err != nil {
		return nil, fmt.Errorf("decode file notification: %w", err)
	}
	if n.DeviceID == "" || n.BlobName == "" {
		return nil, fmt.Errorf("decode file notification: missing deviceId or blobName")
	}
	return &n, nil
}
