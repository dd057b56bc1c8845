package feishu

import "fmt"

// ShipmentFact 出库通知卡片中的一行
type ShipmentFact struct {
	Label string
	Value string
}

// NewShipmentCard 出库完成通知卡片
// title: 卡片标题
// facts: 左右并排显示的字段
// body: 卡片下方的正文（lark_md）
func NewShipmentCard(title string, facts []ShipmentFact, body string) InteractiveCard {
	fields := make([]CardField, 0, len(facts))
	for _, f := range facts {
		fields = append(fields, CardField{
			IsShort: true,
			Text:    CardText{Tag: "lark_md", Content: fmt.Sprintf("**%s**\n%s", f.Label, f.Value)},
		})
	}
	elements := []CardElement{{Tag: "div", Fields: fields}}
	if body != "" {
		elements = append(elements,
			CardElement{Tag: "hr"},
			CardElement{Tag: "markdown", Content: body},
		)
	}
	return InteractiveCard{
		Config: &CardConfig{WideScreenMode: true},
		Header: &CardHeader{
			Title:    CardText{Tag: "plain_text", Content: title},
			Template: "green",
		},
		Elements: elements,
	}
}
