package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zappabad/tradinghall/internal/decision"
)

// Locale holds the user-facing strings the core produces.
type Locale struct {
	Name         string
	Buy          string
	Sell         string
	Analyzing    string
	Placeholders []string

	ConnectionFailed string
	UpstreamFailed   string
	ServerFailed     string // format with one %s for the detail
	FetchFailed      string
}

var English = Locale{
	Name:      "en",
	Buy:       "Buy",
	Sell:      "Sell",
	Analyzing: "Analyzing...",
	Placeholders: []string{
		"Which way should I go?",
		"This is a tough call...",
		"Which strategy do I follow?",
		"Need to think this through",
	},
	ConnectionFailed: "Cannot reach the decision service, check that the backend is running",
	UpstreamFailed:   "Upstream market data failed (CoinGecko API)",
	ServerFailed:     "Server error: %s",
	FetchFailed:      "Failed to fetch decision, try again later",
}

var Chinese = Locale{
	Name:      "zh",
	Buy:       "买入",
	Sell:      "卖出",
	Analyzing: "分析中...",
	Placeholders: []string{
		"我该怎么选呢",
		"这个决定好难...",
		"跟随哪个策略呢？",
		"需要仔细考虑",
	},
	ConnectionFailed: "无法连接到服务器，请检查后端服务是否运行",
	UpstreamFailed:   "外部服务连接失败（CoinGecko API）",
	ServerFailed:     "服务器内部错误: %s",
	FetchFailed:      "获取决策失败，请稍后重试",
}

// LookupLocale returns the locale registered under name. The empty name is English.
func LookupLocale(name string) (Locale, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "en":
		return English, true
	case "zh", "zh-cn", "cn":
		return Chinese, true
	default:
		return Locale{}, false
	}
}

// TradeLabel returns the bubble label for a trade action.
func (l Locale) TradeLabel(a decision.Action) string {
	if a == decision.ActionSell {
		return l.Sell
	}
	return l.Buy
}

// ErrorMessage renders a hard fetch failure for an error bubble.
func (l Locale) ErrorMessage(err error) string {
	switch decision.Classify(err) {
	case decision.KindConnection:
		return l.ConnectionFailed
	case decision.KindUpstream:
		return l.UpstreamFailed
	}
	if detail := errorDetail(err); detail != "" {
		return fmt.Sprintf(l.ServerFailed, detail)
	}
	return l.FetchFailed
}

func errorDetail(err error) string {
	var fe *decision.FetchError
	if errors.As(err, &fe) {
		if fe.Err != nil {
			return fe.Err.Error()
		}
		if fe.Kind == decision.KindMalformed {
			return decision.ErrMalformed.Error()
		}
		return ""
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// placeholder picks one of the human messages.
func (l Locale) placeholder(rng Rand) string {
	if len(l.Placeholders) == 0 {
		return ""
	}
	return l.Placeholders[rng.IntN(len(l.Placeholders))]
}
