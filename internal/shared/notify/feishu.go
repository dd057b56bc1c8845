package notify

import (
	"context"
	"sort"
	"strings"

	"github.com/bitfantasy/nimo-wms/internal/shared/feishu"
)

// FeishuDispatcher posts a card to a Feishu group bot.
type FeishuDispatcher struct {
	bot *feishu.BotClient
}

func NewFeishuDispatcher(bot *feishu.BotClient) *FeishuDispatcher {
	return &FeishuDispatcher{bot: bot}
}

func (d *FeishuDispatcher) Send(ctx context.Context, msg Message) error {
	keys := make([]string, 0, len(msg.Facts))
	for k := range msg.Facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	facts := make([]feishu.ShipmentFact, 0, len(keys))
	for _, k := range keys {
		facts = append(facts, feishu.ShipmentFact{Label: k, Value: msg.Facts[k]})
	}
	body := msg.Body
	if len(msg.Attachments) > 0 {
		body += "\n\n" + strings.Join(msg.Attachments, "\n")
	}
	return d.bot.SendCard(ctx, feishu.NewShipmentCard(msg.Subject, facts, body))
}
