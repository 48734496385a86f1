package pipeline

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CleaningRule 清洗规则
type CleaningRule interface {
	Apply(column string, value Value) Value
	Name() string
}

// DataCleaner 数据清洗器
type DataCleaner struct {
	rules  []CleaningRule
	logger *zap.Logger

	stats     CleaningStats
	statsLock sync.RWMutex
}

// CleaningStats 清洗统计
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Corrected      int64            `json:"corrected"`
	Corrections    map[string]int64 `json:"corrections"`
	LastClean      time.Time        `json:"last_clean"`
}

// NewDataCleaner 创建数据清洗器
func NewDataCleaner(logger *zap.Logger, rules ...CleaningRule) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cleaner := &DataCleaner{
		rules:  make([]CleaningRule, 0, len(rules)),
		logger: logger,
		stats: CleaningStats{
			Corrections: make(map[string]int64),
		},
	}
	for _, rule := range rules {
		cleaner.AddRule(rule)
	}
	return cleaner
}

// NewDefaultCleaner 按摄取配置创建默认规则
func NewDefaultCleaner(config IngestionConfig, logger *zap.Logger) *DataCleaner {
	rules := []CleaningRule{
		NewTrimSpaceRule(),
		NewMissingMarkerRule(config.MissingMarkers),
	}
	if config.DecimalComma {
		rules = append(rules, NewDecimalCommaRule())
	}
	return NewDataCleaner(logger, rules...)
}

// AddRule 添加清洗规则
func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.logger.Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

// Clean 清洗数据，原地修改行值
func (dc *DataCleaner) Clean(set *RowSet) {
	dc.statsLock.Lock()
	defer dc.statsLock.Unlock()

	for _, row := range set.Rows {
		dc.stats.TotalProcessed++
		corrected := false
		for column, value := range row.Values {
			original := value
			for _, rule := range dc.rules {
				cleaned := rule.Apply(column, value)
				if cleaned != value {
					dc.stats.Corrections[rule.Name()]++
				}
				value = cleaned
			}
			if value != original {
				row.Values[column] = value
				corrected = true
			}
		}
		if corrected {
			dc.stats.Corrected++
		}
	}

	dc.stats.LastClean = time.Now()
}

// GetStats 获取统计信息
func (dc *DataCleaner) GetStats() CleaningStats {
	dc.statsLock.RLock()
	defer dc.statsLock.RUnlock()

	stats := dc.stats
	stats.Corrections = make(map[string]int64, len(dc.stats.Corrections))
	for k, v := range dc.stats.Corrections {
		stats.Corrections[k] = v
	}
	return stats
}

// ============ 清洗规则实现 ============

// TrimSpaceRule 去除首尾空白
type TrimSpaceRule struct{}

func NewTrimSpaceRule() *TrimSpaceRule {
	return &TrimSpaceRule{}
}

func (r *TrimSpaceRule) Name() string {
	return "trim_space"
}

func (r *TrimSpaceRule) Apply(column string, value Value) Value {
	if value.Kind != Text {
		return value
	}
	trimmed := strings.TrimSpace(value.Str)
	if trimmed == value.Str {
		return value
	}
	return TextValue(trimmed)
}

// MissingMarkerRule 缺失标记识别
type MissingMarkerRule struct {
	markers map[string]struct{}
}

func NewMissingMarkerRule(markers []string) *MissingMarkerRule {
	rule := &MissingMarkerRule{markers: make(map[string]struct{}, len(markers)+1)}
	// 空字符串始终视为缺失
	rule.markers[""] = struct{}{}
	for _, m := range markers {
		rule.markers[strings.TrimSpace(m)] = struct{}{}
	}
	return rule
}

func (r *MissingMarkerRule) Name() string {
	return "missing_marker"
}

func (r *MissingMarkerRule) Apply(column string, value Value) Value {
	if value.Kind != Text {
		return value
	}
	if _, ok := r.markers[value.Str]; ok {
		return MissingValue()
	}
	return value
}

// DecimalCommaRule 小数逗号转换，如 "1,5" -> "1.5"
type DecimalCommaRule struct {
	pattern *regexp.Regexp
}

func NewDecimalCommaRule() *DecimalCommaRule {
	return &DecimalCommaRule{
		pattern: regexp.MustCompile(`^[-+]?\d+,\d+$`),
	}
}

func (r *DecimalCommaRule) Name() string {
	return "decimal_comma"
}

func (r *DecimalCommaRule) Apply(column string, value Value) Value {
	if value.Kind != Text || !r.pattern.MatchString(value.Str) {
		return value
	}
	return TextValue(strings.Replace(value.Str, ",", ".", 1))
}
