package notification

import (
	"errors"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/surgecart/surge/config"
)

func TestSlackNotification(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	cnf := &config.Configuration{}
	cnf.Notification.Slack.WebhookUrl = "https://hooks.slack.com/services/T000/B000/XXX"
	config.MockConfig(cnf)

	httpmock.RegisterResponder("POST", cnf.Notification.Slack.WebhookUrl,
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{"ok": true}))

	SlackNotification(errors.New("outbox message msg_1 moved to FAILED"))

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["POST "+cnf.Notification.Slack.WebhookUrl])
}
