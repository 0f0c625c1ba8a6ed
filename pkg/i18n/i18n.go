// Package i18n localizes report labels and operator-facing messages. The
// Chinese vocabulary follows the conventions of Chinese derivative venues
// (买入开多, 完全成交, and so on).
package i18n

import (
	"sync"

	"execution-core/pkg/venue"
)

// Language type
type Language string

const (
	LangEN Language = "en"
	LangZH Language = "zh"
)

// Messages holds all translatable strings.
type Messages struct {
	// System
	Starting         string
	ConfigLoaded     string
	ServerListening  string
	ShuttingDown     string
	ConfigLoadFailed string
	ProfileLoaded    string
	APIServerError   string

	// Execution
	OrderSubmitted    string
	OrderFilled       string
	OrderCancelled    string
	OrderRejected     string
	ChasingMarket     string
	CancelLostRace    string
	RetriesExhausted  string
	ExecutionFinished string
}

var messagesEN = Messages{
	Starting:         "Starting execution core...",
	ConfigLoaded:     "Config loaded (Port: %s)",
	ServerListening:  "Server listening on :%s",
	ShuttingDown:     "Shutting down gracefully...",
	ConfigLoadFailed: "Failed to load config: %v",
	ProfileLoaded:    "Execution profile loaded: %d venue(s)",
	APIServerError:   "API server error: %v",

	OrderSubmitted:    "Order %s submitted on %s",
	OrderFilled:       "Order %s fully filled at %s",
	OrderCancelled:    "Order %s cancelled (filled %s)",
	OrderRejected:     "Order %s rejected: %s",
	ChasingMarket:     "Chasing market: reissuing %s at %s",
	CancelLostRace:    "Cancel lost the race, order %s already filled",
	RetriesExhausted:  "Reissue attempts exhausted after %d tries",
	ExecutionFinished: "Execution finished on %s (%d attempts)",
}

var messagesZH = Messages{
	Starting:         "啟動執行核心...",
	ConfigLoaded:     "設定已載入（埠號：%s）",
	ServerListening:  "服務監聽於 :%s",
	ShuttingDown:     "正在優雅關閉...",
	ConfigLoadFailed: "讀取設定失敗：%v",
	ProfileLoaded:    "執行設定檔已載入：%d 個交易所",
	APIServerError:   "API 伺服器錯誤：%v",

	OrderSubmitted:    "訂單 %s 已提交至 %s",
	OrderFilled:       "訂單 %s 完全成交，均價 %s",
	OrderCancelled:    "訂單 %s 已撤單（已成交 %s）",
	OrderRejected:     "訂單 %s 下單失敗：%s",
	ChasingMarket:     "追價重發：%s @ %s",
	CancelLostRace:    "撤單晚於成交，訂單 %s 已完全成交",
	RetriesExhausted:  "重發次數已用盡（%d 次）",
	ExecutionFinished: "%s 執行完成（共 %d 次下單）",
}

var actionLabelsZH = map[venue.Action]string{
	venue.ActionBuy:        "买入开多",
	venue.ActionSell:       "卖出平多",
	venue.ActionSellShort:  "卖出开空",
	venue.ActionBuyToCover: "买入平空",
}

var statusLabelsZH = map[venue.StatusKind]string{
	venue.StatusPending:         "等待成交",
	venue.StatusPartiallyFilled: "部分成交",
	venue.StatusFilled:          "完全成交",
	venue.StatusCancelled:       "撤单成功",
	venue.StatusRejected:        "失败",
}

var (
	mu          sync.RWMutex
	currentLang = LangEN
	messages    = &messagesEN
)

// SetLanguage sets the current language.
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()

	currentLang = lang
	switch lang {
	case LangZH:
		messages = &messagesZH
	default:
		messages = &messagesEN
	}
}

// GetLanguage returns the current language.
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return currentLang
}

// M returns the current messages.
func M() *Messages {
	mu.RLock()
	defer mu.RUnlock()
	return messages
}

// ActionLabel localizes a trade action for reports.
func ActionLabel(a venue.Action) string {
	if GetLanguage() == LangZH {
		if s, ok := actionLabelsZH[a]; ok {
			return s
		}
	}
	return string(a)
}

// StatusLabel localizes an order status for reports.
func StatusLabel(k venue.StatusKind) string {
	if GetLanguage() == LangZH {
		if s, ok := statusLabelsZH[k]; ok {
			return s
		}
	}
	return k.String()
}
