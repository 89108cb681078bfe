package sqlstore

import (
	"github.com/goliatone/go-callverify/core"
	"github.com/goliatone/go-callverify/webhooks"
)

var (
	_ core.CallArchive        = (*CallLogStore)(nil)
	_ core.CallArchive        = (*CachedCallLogStore)(nil)
	_ webhooks.DeliveryLedger = (*WebhookDeliveryStore)(nil)
)
