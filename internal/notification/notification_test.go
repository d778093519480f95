package notification

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookURL = "https://hooks.slack.com/services/T000/B000/XXXX"

func TestSlackNotification_Success(t *testing.T) {
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	var received slackMessage
	httpmock.RegisterResponder(http.MethodPost, webhookURL,
		func(req *http.Request) (*http.Response, error) {
			body, err := io.ReadAll(req.Body)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(body, &received); err != nil {
				return nil, err
			}
			return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
		})

	err := SlackNotification(webhookURL, "Dispatch", errors.New("failed to load active recurring orders"))
	require.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())

	require.Len(t, received.Blocks, 3)
	assert.Equal(t, "Error From Dispatch 🐞", received.Blocks[0].Text.Text)
	assert.Contains(t, received.Blocks[1].Fields[0].Text, "failed to load active recurring orders")
}

func TestSlackNotification_ErrorStatus(t *testing.T) {
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, webhookURL, httpmock.NewStringResponder(http.StatusForbidden, "invalid_token"))

	err := SlackNotification(webhookURL, "Dispatch", errors.New("boom"))
	assert.EqualError(t, err, "slack webhook returned status 403")
}

func TestSlackPayload(t *testing.T) {
	at := time.Date(2024, 1, 9, 2, 0, 0, 0, time.UTC)
	msg := slackPayload("Dispatch", errors.New("boom"), at)

	assert.Equal(t, "header", msg.Blocks[0].Type)
	assert.Equal(t, "*Error:*\nboom", msg.Blocks[1].Fields[0].Text)
	assert.Equal(t, "*Time:*\n09 Jan 24 02:00 UTC", msg.Blocks[2].Fields[0].Text)
}
