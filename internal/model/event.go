package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type EventType string

const (
	EventEngaged                    EventType = "ENGAGED"
	EventRebalanced                 EventType = "REBALANCED"
	EventRebalanceIterated          EventType = "REBALANCE_ITERATED"
	EventRipcordCalled              EventType = "RIPCORD_CALLED"
	EventDisengaged                 EventType = "DISENGAGED"
	EventMethodologySettingsUpdated EventType = "METHODOLOGY_SETTINGS_UPDATED"
	EventExecutionSettingsUpdated   EventType = "EXECUTION_SETTINGS_UPDATED"
	EventIncentiveSettingsUpdated   EventType = "INCENTIVE_SETTINGS_UPDATED"
	EventExchangeAdded              EventType = "EXCHANGE_ADDED"
	EventExchangeUpdated            EventType = "EXCHANGE_UPDATED"
	EventExchangeRemoved            EventType = "EXCHANGE_REMOVED"
	EventCallerStatusUpdated        EventType = "CALLER_STATUS_UPDATED"
	EventAnyoneCallableUpdated      EventType = "ANYONE_CALLABLE_UPDATED"
	EventBountyDeposited            EventType = "BOUNTY_DEPOSITED"
	EventBountyWithdrawn            EventType = "BOUNTY_WITHDRAWN"
)

// Event 记录一次成功的状态变更（再平衡、设置更新等）
type Event struct {
	ID       string         `json:"id"`
	Type     EventType      `json:"type"`
	Exchange string         `json:"exchange,omitempty"`
	Caller   common.Address `json:"caller"`

	// 业务上下文，例如杠杆率、交易规模、赏金
	Payload map[string]interface{} `json:"payload"`

	CreatedAt time.Time `json:"created_at"`
}
