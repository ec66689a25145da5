// Package locator extracts the S3 object coordinates from a queue message body.
package locator

import (
	"fmt"
	"net/url"

	"firehose-forwarder/internal/model"

	"github.com/aws/aws-lambda-go/events"
	json "github.com/goccy/go-json"
)

// snsEnvelope is the wrapper SNS adds when S3 notifications fan out through a topic.
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// Parse returns the first object referenced by an S3 notification carried in body.
// Notifications delivered through SNS are unwrapped first.
func Parse(body string) (model.ObjectReference, error) {
	payload := []byte(body)

	var sns snsEnvelope
	if err := json.Unmarshal(payload, &sns); err == nil && sns.Type == "Notification" && sns.Message != "" {
		payload = []byte(sns.Message)
	}

	var notification events.S3Event
	if err := json.Unmarshal(payload, &notification); err != nil {
		return model.ObjectReference{}, fmt.Errorf("%w: %v", model.ErrMalformedReference, err)
	}
	if len(notification.Records) == 0 {
		return model.ObjectReference{}, fmt.Errorf("%w: no Records", model.ErrMalformedReference)
	}

	s3 := notification.Records[0].S3
	if s3.Bucket.Name == "" || s3.Object.Key == "" {
		return model.ObjectReference{}, fmt.Errorf("%w: Records[0] has no s3 bucket/key", model.ErrMalformedReference)
	}

	// notification 의 key 는 URL encoding 되어 있다 (공백은 '+').
	key, err := url.QueryUnescape(s3.Object.Key)
	if err != nil {
		return model.ObjectReference{}, fmt.Errorf("%w: key %q: %v", model.ErrMalformedReference, s3.Object.Key, err)
	}

	return model.ObjectReference{Bucket: s3.Bucket.Name, Key: key}, nil
}
