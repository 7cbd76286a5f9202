package model

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/coderi421/ratorm/orm/internal/errs"
)

var (
	tagValueKeys = map[string]struct{}{
		tagKeyColumn: {}, tagKeySize: {}, tagKeyType: {}, tagKeyDefault: {}, tagKeyEnum: {},
		tagKeyAuto: {}, tagKeyJoin: {}, tagKeyOnDelete: {}, tagKeyOnUpdate: {}, tagKeyFetch: {},
	}
	tagFlags = map[string]struct{}{
		tagFlagPK: {}, tagFlagNotNull: {}, tagFlagUnique: {}, tagFlagImmutable: {},
		tagFlagCreated: {}, tagFlagUpdated: {}, tagFlagDate: {}, tagFlagInverse: {}, tagIgnore: {},
	}
)

// tags 解析之后的标签，flag 的值是空字符串
type tags map[string]string

func (t tags) has(key string) bool {
	_, ok := t[key]
	return ok
}

// parseTag parses the given struct tag and returns a map of key-value pairs.
// orm:"column=user_name,size=64,notnull,type=DECIMAL(10,2)"
// 括号和单引号里面的逗号不会被当成分隔符
func parseTag(tag reflect.StructTag) (tags, error) {
	ormTag := tag.Get(tagORMName)
	if ormTag == "" {
		// Return an empty map so that the caller doesn't need to check for nil
		return tags{}, nil
	}

	res := make(tags, 4)
	for _, pair := range splitTag(ormTag) {
		pair = strings.TrimSpace(pair)
		key, val, hasVal := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, errs.NewErrInvalidTagContent(pair)
		}
		if _, ok := tagFlags[key]; ok {
			if hasVal {
				return nil, errs.NewErrInvalidTagContent(pair)
			}
			res[key] = ""
			continue
		}
		if _, ok := tagValueKeys[key]; ok {
			val = strings.TrimSpace(val)
			if !hasVal || val == "" {
				return nil, errs.NewErrInvalidTagContent(pair)
			}
			res[key] = val
			continue
		}
		// 不认识的 key 直接忽略，不认识又没有 = 的也算错
		if !hasVal {
			return nil, errs.NewErrInvalidTagContent(pair)
		}
	}
	return res, nil
}

func splitTag(s string) []string {
	var (
		res    []string
		depth  int
		quoted bool
		start  int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			quoted = !quoted
		case '(':
			if !quoted {
				depth++
			}
		case ')':
			if !quoted && depth > 0 {
				depth--
			}
		case ',':
			if !quoted && depth == 0 {
				res = append(res, s[start:i])
				start = i + 1
			}
		}
	}
	return append(res, s[start:])
}

func (t tags) size() (int, error) {
	v, ok := t[tagKeySize]
	if !ok {
		return defaultSize, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errs.NewErrInvalidTagContent(tagKeySize + "=" + v)
	}
	return n, nil
}

func (t tags) action(key string) (Action, error) {
	v, ok := t[key]
	if !ok {
		return ActionNoAction, nil
	}
	switch strings.ToLower(v) {
	case "cascade":
		return ActionCascade, nil
	case "set_null":
		return ActionSetNull, nil
	case "restrict":
		return ActionRestrict, nil
	case "no_action":
		return ActionNoAction, nil
	}
	return "", errs.NewErrInvalidTagContent(key + "=" + v)
}

func (t tags) fetch() (FetchType, error) {
	v, ok := t[tagKeyFetch]
	if !ok {
		return FetchEager, nil
	}
	switch v {
	case "eager":
		return FetchEager, nil
	case "lazy":
		return FetchLazy, nil
	}
	return 0, errs.NewErrInvalidTagContent(tagKeyFetch + "=" + v)
}

func (t tags) enumEncoding() (EnumEncoding, bool, error) {
	v, ok := t[tagKeyEnum]
	if !ok {
		return EnumOrdinal, false, nil
	}
	switch v {
	case "name":
		return EnumName, true, nil
	case "ordinal":
		return EnumOrdinal, true, nil
	}
	return 0, true, errs.NewErrInvalidTagContent(tagKeyEnum + "=" + v)
}

func (t tags) generation() (Generation, bool, error) {
	v, ok := t[tagKeyAuto]
	if !ok {
		return GenerationNone, false, nil
	}
	switch v {
	case "uuid":
		return GenerationUUID, true, nil
	case "ulid":
		return GenerationULID, true, nil
	case "increment":
		return GenerationIncrement, true, nil
	}
	return 0, true, errs.NewErrInvalidTagContent(tagKeyAuto + "=" + v)
}
