package model

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
)

// NamingStrategy 决定默认的表名和列名
type NamingStrategy interface {
	TableName(typeName string) string
	ColumnName(fieldName string) string
}

var (
	// DefaultNaming 表名是小写的类型名，列名是下划线风格
	DefaultNaming NamingStrategy = defaultNaming{}
	// PluralNaming 表名是下划线风格的复数，User -> users, OrderItem -> order_items
	PluralNaming NamingStrategy = pluralNaming{}
)

type defaultNaming struct{}

func (defaultNaming) TableName(typeName string) string {
	return strings.ToLower(typeName)
}

func (defaultNaming) ColumnName(fieldName string) string {
	return underscoreName(fieldName)
}

type pluralNaming struct{}

func (pluralNaming) TableName(typeName string) string {
	return inflect.Pluralize(underscoreName(typeName))
}

func (pluralNaming) ColumnName(fieldName string) string {
	return underscoreName(fieldName)
}

// underscoreName 驼峰转下划线
// UserName -> user_name, UserID -> user_id, HTTPServer -> http_server
func underscoreName(name string) string {
	runes := []rune(name)
	var sb strings.Builder
	sb.Grow(len(runes) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					sb.WriteByte('_')
				}
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
