package nasl

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"NaslParser/internal/model"
)

// Kind 字段的语义类型，决定捕获文本如何归一化
type Kind int

const (
	KindInteger Kind = iota
	KindText
	KindLocalizedText
	KindStringList
	KindIntegerList
	KindMapping
	KindMappingList
	KindDateTime
	KindVersion
)

var kindNames = map[Kind]string{
	KindInteger:       "integer",
	KindText:          "text",
	KindLocalizedText: "localized-text",
	KindStringList:    "string-list",
	KindIntegerList:   "integer-list",
	KindMapping:       "mapping",
	KindMappingList:   "mapping-list",
	KindDateTime:      "date-time",
	KindVersion:       "version",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Value 归一化后的值，只有与Kind对应的成员有意义
type Value struct {
	Kind     Kind
	Int      int
	Text     string
	Strings  []string
	Ints     []int
	Mapping  map[string]string
	Mappings []map[string]string
	Date     model.CVSDate
}

// 识别成本地化字符串的语言前缀，如 english:"..."
// 只在开头或逗号之后算作新的语言段，正文里的 German: 之类保持原样
var localePattern = regexp.MustCompile(`(?i)(?:^|,)\s*(english|francais|french|deutsch|german|portugues|espanol|spanish|italiano|japanese|russian|chinese|korean)\s*:`)

var (
	bracePattern = regexp.MustCompile(`\{([^}]*)\}`)
	pairPattern  = regexp.MustCompile(`([^:]*):([^,]*),?`)
)

// 依次尝试的日期格式
var dateLayouts = []string{
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006/01/02 15:04:05 -0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	"2006/01/02",
	"2006-01-02",
}

// Normalize 把捕获的原始文本转换成kind对应的形状
// 返回false表示无法归一化，调用方按“未匹配”处理
func Normalize(kind Kind, captures []string) (Value, bool) {
	if len(captures) == 0 {
		return Value{}, false
	}

	v := Value{Kind: kind}
	switch kind {
	case KindInteger:
		n, err := strconv.Atoi(strings.TrimSpace(captures[0]))
		if err != nil {
			return Value{}, false
		}
		v.Int = n
	case KindText, KindVersion:
		v.Text = strings.TrimSpace(captures[0])
	case KindLocalizedText:
		v.Text = localizedText(captures[0])
	case KindStringList:
		v.Strings = uniqueTokens(captures)
	case KindIntegerList:
		v.Ints = integerTokens(captures)
	case KindMapping:
		v.Mapping = map[string]string{}
		for _, capture := range captures {
			for _, pair := range mappingPairs(capture) {
				v.Mapping[pair[0]] = pair[1]
			}
		}
	case KindMappingList:
		v.Mappings = []map[string]string{}
		for _, capture := range captures {
			v.Mappings = append(v.Mappings, mappingGroups(capture)...)
		}
	case KindDateTime:
		v.Date = parseCVSDate(captures[0])
	default:
		return Value{}, false
	}
	return v, true
}

// localizedText 去掉语言前缀，优先取english段
func localizedText(text string) string {
	text = strings.TrimSpace(text)
	locs := localePattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 || locs[0][0] != 0 {
		return text
	}

	first := ""
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		segment := strings.TrimSpace(text[loc[1]:end])
		segment = strings.TrimSpace(strings.TrimRight(segment, ","))

		lang := strings.ToLower(text[loc[2]:loc[3]])
		if lang == "english" {
			return segment
		}
		if i == 0 {
			first = segment
		}
	}
	return first
}

func splitTokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// uniqueTokens 逗号/空白分隔，去重并保持原顺序
func uniqueTokens(captures []string) []string {
	seen := make(map[string]bool)
	tokens := []string{}
	for _, capture := range captures {
		for _, token := range splitTokens(capture) {
			if seen[token] {
				continue
			}
			seen[token] = true
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// integerTokens 无法解析为整数的token直接跳过
func integerTokens(captures []string) []int {
	numbers := []int{}
	for _, capture := range captures {
		for _, token := range splitTokens(capture) {
			n, err := strconv.Atoi(token)
			if err != nil {
				continue
			}
			numbers = append(numbers, n)
		}
	}
	return numbers
}

// cutLabel 拆分 label:content 形式的命名参数
func cutLabel(s string) (string, string, bool) {
	label, content, ok := strings.Cut(strings.TrimSpace(s), ":")
	return strings.ToLower(strings.TrimSpace(label)), strings.TrimSpace(content), ok
}

// mappingPairs 支持三种写法:
//
//	name:K, value:V 或 attribute:K, value:V
//	k1:v1, k2:v2
//	k, v
func mappingPairs(capture string) [][2]string {
	capture = strings.TrimSpace(capture)
	if capture == "" {
		return nil
	}

	if left, right, ok := strings.Cut(capture, ","); ok {
		label, key, lok := cutLabel(left)
		valueLabel, value, vok := cutLabel(right)
		if lok && vok && (label == "name" || label == "attribute") && valueLabel == "value" {
			return [][2]string{{key, value}}
		}
	}

	parts := strings.Split(capture, ",")
	allLabeled := true
	for _, part := range parts {
		if !strings.Contains(part, ":") {
			allLabeled = false
			break
		}
	}

	var pairs [][2]string
	switch {
	case allLabeled:
		for _, part := range parts {
			k, v, _ := strings.Cut(part, ":")
			k = strings.TrimSpace(k)
			if k == "" {
				continue
			}
			pairs = append(pairs, [2]string{k, strings.TrimSpace(v)})
		}
	case len(parts) == 2:
		k := strings.TrimSpace(parts[0])
		if k != "" {
			pairs = append(pairs, [2]string{k, strings.TrimSpace(parts[1])})
		}
	}
	return pairs
}

// mappingGroups 每个{...}组生成一个映射，没有花括号时整段作为一组
func mappingGroups(capture string) []map[string]string {
	var bodies []string
	for _, group := range bracePattern.FindAllStringSubmatch(capture, -1) {
		bodies = append(bodies, group[1])
	}
	if len(bodies) == 0 {
		bodies = []string{capture}
	}

	groups := make([]map[string]string, 0, len(bodies))
	for _, body := range bodies {
		groups = append(groups, parseGroup(body))
	}
	return groups
}

func parseGroup(body string) map[string]string {
	group := map[string]string{}
	for _, kv := range pairPattern.FindAllStringSubmatch(body, -1) {
		group[strings.TrimSpace(kv[1])] = strings.TrimSpace(kv[2])
	}
	return group
}

// parseCVSDate 去掉 $Date: ... $ 装饰后按已知格式解析，失败保留原文
func parseCVSDate(raw string) model.CVSDate {
	text := strings.TrimSpace(raw)

	cleaned := strings.TrimSpace(strings.Trim(text, "$"))
	cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "Date:"))
	if i := strings.Index(cleaned, " ("); i >= 0 {
		cleaned = cleaned[:i]
	}
	cleaned = strings.TrimSpace(strings.Trim(cleaned, "$"))

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return model.CVSDate{Time: t, Raw: text, Parsed: true}
		}
	}
	return model.CVSDate{Raw: text}
}
