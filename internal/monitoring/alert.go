package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"driftmail/backend/internal/storage"
)

// AlertLevel 告警级别
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// Alert 一条告警记录，按规则 ID 去重
type Alert struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Level      AlertLevel `json:"level"`
	Component  string     `json:"component"`
	Timestamp  time.Time  `json:"timestamp"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// AlertRule 告警规则，Condition 返回 true 时触发，恢复 false 后自动解除
type AlertRule struct {
	ID        string
	Name      string
	Condition func() bool
	Level     AlertLevel
	Component string
	Message   string
	Cooldown  time.Duration
}

// AlertReceiver 告警接收器接口
type AlertReceiver interface {
	SendAlert(alert *Alert) error
}

// AlertManager 周期性评估规则并分发告警
type AlertManager struct {
	alerts        map[string]*Alert
	rules         []AlertRule
	lastTriggered map[string]time.Time
	receivers     []AlertReceiver
	logger        *zap.Logger
	mu            sync.RWMutex
}

// NewAlertManager 创建告警管理器
func NewAlertManager(logger *zap.Logger) *AlertManager {
	return &AlertManager{
		alerts:        make(map[string]*Alert),
		lastTriggered: make(map[string]time.Time),
		logger:        logger,
	}
}

// AddReceiver 添加告警接收器
func (am *AlertManager) AddReceiver(receiver AlertReceiver) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.receivers = append(am.receivers, receiver)
}

// AddRule 添加告警规则
func (am *AlertManager) AddRule(rule AlertRule) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.rules = append(am.rules, rule)
}

// ActiveAlerts 返回当前未解除的告警
func (am *AlertManager) ActiveAlerts() []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	alerts := make([]Alert, 0)
	for _, alert := range am.alerts {
		if !alert.Resolved {
			alerts = append(alerts, *alert)
		}
	}
	return alerts
}

// CheckRules 逐条评估规则：条件成立且过了冷却期则触发，条件恢复则解除
func (am *AlertManager) CheckRules() {
	am.mu.RLock()
	rules := make([]AlertRule, len(am.rules))
	copy(rules, am.rules)
	am.mu.RUnlock()

	for _, rule := range rules {
		if rule.Condition() {
			am.trigger(rule)
		} else {
			am.resolve(rule.ID)
		}
	}
}

func (am *AlertManager) trigger(rule AlertRule) {
	am.mu.Lock()

	if existing, ok := am.alerts[rule.ID]; ok && !existing.Resolved {
		am.mu.Unlock()
		return
	}
	if time.Since(am.lastTriggered[rule.ID]) < rule.Cooldown {
		am.mu.Unlock()
		return
	}

	alert := &Alert{
		ID:        rule.ID,
		Title:     rule.Name,
		Message:   rule.Message,
		Level:     rule.Level,
		Component: rule.Component,
		Timestamp: time.Now().UTC(),
	}
	am.alerts[rule.ID] = alert
	am.lastTriggered[rule.ID] = time.Now()
	receivers := make([]AlertReceiver, len(am.receivers))
	copy(receivers, am.receivers)
	am.mu.Unlock()

	for _, receiver := range receivers {
		if err := receiver.SendAlert(alert); err != nil {
			am.logger.Error("failed to send alert",
				zap.String("alert_id", alert.ID),
				zap.Error(err),
			)
		}
	}

	am.logger.Info("alert triggered",
		zap.String("alert_id", alert.ID),
		zap.String("level", string(alert.Level)),
		zap.String("component", alert.Component),
	)
}

func (am *AlertManager) resolve(ruleID string) {
	am.mu.Lock()
	defer am.mu.Unlock()

	if alert, ok := am.alerts[ruleID]; ok && !alert.Resolved {
		now := time.Now().UTC()
		alert.Resolved = true
		alert.ResolvedAt = &now

		am.logger.Info("alert resolved", zap.String("alert_id", ruleID))
	}
}

// StartMonitoring 按固定间隔评估规则，直到 ctx 取消
func (am *AlertManager) StartMonitoring(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			am.CheckRules()
		}
	}
}

// ========== 内置告警规则 ==========

// HighMemoryUsageRule 堆内存占用超过阈值时告警
func HighMemoryUsageRule(thresholdMB float64) AlertRule {
	return AlertRule{
		ID:   "high_memory_usage",
		Name: "High Memory Usage",
		Condition: func() bool {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			return float64(m.Alloc)/1024/1024 > thresholdMB
		},
		Level:     AlertLevelWarning,
		Component: "memory",
		Message:   fmt.Sprintf("heap allocation exceeds %.0f MB", thresholdMB),
		Cooldown:  5 * time.Minute,
	}
}

// GoroutineCountRule goroutine 数量超过阈值时告警，用于发现泄漏
func GoroutineCountRule(threshold int) AlertRule {
	return AlertRule{
		ID:   "goroutine_count",
		Name: "High Goroutine Count",
		Condition: func() bool {
			return runtime.NumGoroutine() > threshold
		},
		Level:     AlertLevelWarning,
		Component: "runtime",
		Message:   fmt.Sprintf("goroutine count exceeds %d", threshold),
		Cooldown:  5 * time.Minute,
	}
}

// StoreConnectionRule 元数据存储探活失败时告警
func StoreConnectionRule(store storage.Store) AlertRule {
	return AlertRule{
		ID:   "store_connection",
		Name: "Metadata Store Connection",
		Condition: func() bool {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return store.Ping(ctx) != nil
		},
		Level:     AlertLevelCritical,
		Component: "storage",
		Message:   "metadata store ping failed",
		Cooldown:  time.Minute,
	}
}

// ========== 告警接收器实现 ==========

// LogAlertReceiver 将告警写入结构化日志
type LogAlertReceiver struct {
	logger *zap.Logger
}

// NewLogAlertReceiver 创建日志告警接收器
func NewLogAlertReceiver(logger *zap.Logger) *LogAlertReceiver {
	return &LogAlertReceiver{logger: logger}
}

// SendAlert 按告警级别选择日志级别输出
func (lar *LogAlertReceiver) SendAlert(alert *Alert) error {
	fields := []zap.Field{
		zap.String("alert_id", alert.ID),
		zap.String("title", alert.Title),
		zap.String("message", alert.Message),
		zap.String("component", alert.Component),
		zap.Time("timestamp", alert.Timestamp),
	}

	switch alert.Level {
	case AlertLevelCritical:
		lar.logger.Error("CRITICAL ALERT", fields...)
	case AlertLevelWarning:
		lar.logger.Warn("WARNING ALERT", fields...)
	default:
		lar.logger.Info("INFO ALERT", fields...)
	}
	return nil
}
