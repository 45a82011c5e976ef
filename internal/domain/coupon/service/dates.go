package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// expiryLayouts 按顺序尝试
var expiryLayouts = []string{
	"2006-01-02 15:04:05",
	"2006.01.02 15:04:05",
	"02/01/2006 15:04:05",
	"02-01-2006 15:04:05",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04",
	"02.01.2006 15:04:05",
}

// fallbackLayouts 通用格式
var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02.01.2006",
}

// 表格日期序列号的合理范围 (1900-01-01 至 9999-12-31)
const (
	minDateSerial = 1
	maxDateSerial = 2958465
)

// parseExpiry 解析导入文件中的过期时间，无时区的值按 UTC 处理
// serials 为 true 时纯数字按表格日期序列号解析
func parseExpiry(raw string, serials bool) (time.Time, bool) {
	v := strings.TrimSpace(raw)
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	if !serials {
		return time.Time{}, false
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil && serial >= minDateSerial && serial <= maxDateSerial {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
