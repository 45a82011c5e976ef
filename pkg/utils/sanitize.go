package utils

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
	richPolicyOnce   sync.Once
	richPolicy       *bluemonday.Policy
)

// SanitizeText 去除全部 HTML 标签
func SanitizeText(input string) string {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(strictPolicy.Sanitize(input))
}

// SanitizeRichText 保留常见排版标签，去除脚本和事件属性
func SanitizeRichText(input string) string {
	richPolicyOnce.Do(func() {
		richPolicy = bluemonday.UGCPolicy()
	})
	return strings.TrimSpace(richPolicy.Sanitize(input))
}

// SanitizeTextPtr 可选字段版本
func SanitizeTextPtr(input *string) *string {
	if input == nil {
		return nil
	}
	v := SanitizeText(*input)
	return &v
}

// SanitizeRichTextPtr 可选字段版本
func SanitizeRichTextPtr(input *string) *string {
	if input == nil {
		return nil
	}
	v := SanitizeRichText(*input)
	return &v
}
