package form

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// ==================== 数组列防御性解析 ====================

// ParseArrayField 解析可能是原生数组，也可能是 JSON 文本的数组列
// 解析失败不会报错：返回 fallback(raw)，fallback 为 nil 时返回空切片
// 结果永远不为 nil
func ParseArrayField[T any](raw any, fallback func(raw string) []T) []T {
	out, ok := decodeArray[T](raw, 0)
	if ok {
		return out
	}

	if fallback != nil {
		if s, isText := rawText(raw); isText {
			if fb := fallback(s); fb != nil {
				return fb
			}
		}
	}
	return []T{}
}

// WrapRawString 兜底：把无法解析的原始文本包成单元素列表
func WrapRawString(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return []string{raw}
}

func decodeArray[T any](raw any, depth int) ([]T, bool) {
	switch v := raw.(type) {
	case nil:
		return []T{}, true
	case []T:
		return append([]T{}, v...), true
	case string:
		return decodeArrayText[T](v, depth)
	case []byte:
		return decodeArrayText[T](string(v), depth)
	case json.RawMessage:
		return decodeArrayText[T](string(v), depth)
	default:
		// 原生结构（例如 []interface{}），重新编码后按目标类型解码
		b, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		return decodeArrayText[T](string(b), depth)
	}
}

func decodeArrayText[T any](s string, depth int) ([]T, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return []T{}, true
	}

	var out []T
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		if out == nil {
			out = []T{}
		}
		return out, true
	}

	// 二次编码的 JSON 字符串，例如 "\"[\\\"a\\\"]\""
	if depth == 0 && strings.HasPrefix(s, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			return decodeArrayText[T](inner, depth+1)
		}
	}
	return nil, false
}

// ParseObjectField 解析可能是原生对象或 JSON 文本的对象列，返回可直接 Unmarshal 的字节
func ParseObjectField(raw any) []byte {
	var b []byte
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	case json.RawMessage:
		b = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		b = encoded
	}

	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var inner string
		if err := json.Unmarshal(b, &inner); err == nil {
			b = bytes.TrimSpace([]byte(inner))
		}
	}
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	return b
}

func rawText(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case json.RawMessage:
		return string(v), true
	}
	return "", false
}

// ==================== 数值与日期 ====================

// ParseDecimal 把表单中的数字文本转换为数值，空串或非法输入返回 nil
func ParseDecimal(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// FormatDecimal 数值还原为表单文本
func FormatDecimal(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// NormalizeCalendarDate 校验 YYYY-MM-DD 日期
// 月、日必须是两位数字；经日历归一化后与输入不一致（如 2 月 30 日、第 225 日、2025-2-28）视为非法，返回 nil
func NormalizeCalendarDate(s string) *string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, 'T'); i > 0 {
		s = s[:i]
	}

	parts := strings.Split(s, "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return nil
	}

	year, errY := strconv.Atoi(parts[0])
	month, errM := strconv.Atoi(parts[1])
	day, errD := strconv.Atoi(parts[2])
	if errY != nil || errM != nil || errD != nil {
		return nil
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return nil
	}

	out := t.Format("2006-01-02")
	if out != s {
		return nil
	}
	return &out
}

// parseClock 解析 HH:MM，返回当天分钟数
func parseClock(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 5 || s[2] != ':' {
		return 0, false
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// ==================== 星期 ====================

// Weekdays 一周七天（小写英文，周一开始）
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// NormalizeWeekday 统一星期写法：Monday / mon / 1 -> monday；0 和 7 表示周日
func NormalizeWeekday(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n == 0 || n == 7 {
			return "sunday", true
		}
		if n >= 1 && n <= 6 {
			return Weekdays[n-1], true
		}
		return "", false
	}
	for _, day := range Weekdays {
		if s == day || (len(s) >= 3 && strings.HasPrefix(day, s)) {
			return day, true
		}
	}
	return "", false
}
