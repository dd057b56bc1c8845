package feishu

// BaseResponse 飞书API通用响应结构
type BaseResponse struct {
	Code int    `json:"code"` // 错误码，0表示成功
	Msg  string `json:"msg"`  // 错误消息
}

// BotMessage 群机器人消息体
type BotMessage struct {
	Timestamp string           `json:"timestamp,omitempty"`
	Sign      string           `json:"sign,omitempty"`
	MsgType   string           `json:"msg_type"`          // text / interactive
	Content   *BotText         `json:"content,omitempty"` // text 消息使用
	Card      *InteractiveCard `json:"card,omitempty"`    // interactive 消息使用
}

// BotText 文本消息内容
type BotText struct {
	Text string `json:"text"`
}

// InteractiveCard 飞书交互式消息卡片
type InteractiveCard struct {
	Config   *CardConfig   `json:"config,omitempty"`   // 卡片配置
	Header   *CardHeader   `json:"header,omitempty"`   // 卡片标题
	Elements []CardElement `json:"elements,omitempty"` // 卡片内容元素
}

// CardConfig 卡片配置
type CardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

// CardHeader 卡片标题
type CardHeader struct {
	Title    CardText `json:"title"`
	Template string   `json:"template,omitempty"` // blue/green/red/orange 等
}

// CardText 卡片文本
type CardText struct {
	Tag     string `json:"tag"` // plain_text / lark_md
	Content string `json:"content"`
}

// CardElement 卡片元素
type CardElement struct {
	Tag     string      `json:"tag"` // div/hr/markdown/note
	Text    *CardText   `json:"text,omitempty"`
	Fields  []CardField `json:"fields,omitempty"`
	Content string      `json:"content,omitempty"`
}

// CardField 卡片字段
type CardField struct {
	IsShort bool     `json:"is_short"`
	Text    CardText `json:"text"`
}
