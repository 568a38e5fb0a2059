package nasl

import (
	"regexp"
	"strings"

	"NaslParser/internal/model"
	"NaslParser/internal/utils"
)

var (
	quoteStripper  = strings.NewReplacer(`"`, "", `'`, "")
	commandPattern = regexp.MustCompile(`\s*(.*\(.*\);)`)
)

// ScriptParser NASL脚本元数据提取器，无状态，可并发使用
type ScriptParser struct {
	logger *utils.Logger
}

func NewScriptParser() *ScriptParser {
	return &ScriptParser{
		logger: utils.NewLogger("nasl"),
	}
}

// Parse 便捷入口
func Parse(contents string) *model.ScriptRecord {
	return NewScriptParser().Parse(contents)
}

// Parse 从脚本文本构造完整的记录，任何单个字段失败都不会中断提取
func (sp *ScriptParser) Parse(contents string) *model.ScriptRecord {
	record := model.NewScriptRecord()
	text := Preprocess(contents)

	for i := range scriptFields {
		field := &scriptFields[i]
		value, strategy, ok := sp.resolve(field, text)
		if !ok {
			continue
		}
		assign(record, field.ID, value)
		sp.logger.Debug("字段 %s 由 %s 匹配", field.Name, strategy)
	}

	record.Commands = ExtractCommands(contents)
	return record
}

// Preprocess 换行转空格、去掉所有引号、压缩连续空格
func Preprocess(contents string) string {
	text := strings.ReplaceAll(contents, "\n", " ")
	text = quoteStripper.Replace(text)
	for strings.Contains(text, "  ") {
		text = strings.ReplaceAll(text, "  ", " ")
	}
	return text
}

// resolve 按字段声明的顺序尝试策略，返回第一个成功的结果
func (sp *ScriptParser) resolve(field *Field, text string) (Value, Strategy, bool) {
	for _, strategy := range field.Strategies {
		if value, ok := sp.attempt(field, strategy, text); ok {
			return value, strategy, true
		}
	}
	return Value{}, 0, false
}

func (sp *ScriptParser) attempt(field *Field, strategy Strategy, text string) (Value, bool) {
	pattern := field.patterns[strategy]
	if pattern == nil {
		return Value{}, false
	}

	matches := pattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return Value{}, false
	}

	switch strategy {
	case StrategyScriptCall, StrategyGuardedCheck:
		return Normalize(field.Kind, firstGroups(matches))
	case StrategyConstraintsLiteral:
		return constraintsValue(field.Kind, matches)
	case StrategyGenericCall:
		args := firstGroups(matches)
		for i := range args {
			args[i] = strings.TrimSpace(args[i])
		}
		return Normalize(field.Kind, args)
	case StrategyGenericAssignment:
		return assignmentValue(field.Kind, matches)
	}
	return Value{}, false
}

func firstGroups(matches [][]string) []string {
	groups := make([]string, 0, len(matches))
	for _, m := range matches {
		groups = append(groups, m[1])
	}
	return groups
}

// constraintsValue 每个赋值里的每个{...}组都生成一个映射
func constraintsValue(kind Kind, matches [][]string) (Value, bool) {
	if kind != KindMappingList {
		return Value{}, false
	}

	constraints := []map[string]string{}
	for _, m := range matches {
		for _, group := range bracePattern.FindAllStringSubmatch(m[1], -1) {
			constraints = append(constraints, parseGroup(group[1]))
		}
	}
	return Value{Kind: kind, Mappings: constraints}, true
}

// assignmentValue 所有 lhs = rhs 累积为映射，重复的键后者覆盖前者
// 字符串列表类型只保留左侧的名字
func assignmentValue(kind Kind, matches [][]string) (Value, bool) {
	mapping := map[string]string{}
	var names []string
	for _, m := range matches {
		key := strings.TrimSpace(m[1])
		if _, exists := mapping[key]; !exists {
			names = append(names, key)
		}
		mapping[key] = strings.TrimSpace(m[2])
	}

	switch kind {
	case KindMapping:
		return Value{Kind: kind, Mapping: mapping}, true
	case KindStringList:
		declared := []string{}
		for _, name := range names {
			if name != "" {
				declared = append(declared, name)
			}
		}
		return Value{Kind: kind, Strings: declared}, true
	}
	return Value{}, false
}

// assign 按字段写入记录
func assign(r *model.ScriptRecord, id FieldID, v Value) {
	switch id {
	case FieldScriptID:
		r.ID = v.Int
	case FieldName:
		r.Name = v.Text
	case FieldSummary:
		r.Summary = v.Text
	case FieldFamily:
		r.Family = v.Text
	case FieldCopyright:
		r.Copyright = v.Text
	case FieldCategory:
		r.Category = v.Text
	case FieldVersion:
		r.Version = v.Text
	case FieldCVEID:
		r.CVEIDs = v.Strings
	case FieldCWEID:
		r.CWEIDs = v.Ints
	case FieldBugtraqID:
		r.BugtraqIDs = v.Ints
	case FieldOSVDBID:
		r.OSVDBIDs = v.Ints
	case FieldCVSSBaseVector:
		r.CVSSBaseVector = v.Text
	case FieldCVSSTemporalVector:
		r.CVSSTemporalVector = v.Text
	case FieldCVSS3BaseVector:
		r.CVSS3BaseVector = v.Text
	case FieldCVSS3TemporalVector:
		r.CVSS3TemporalVector = v.Text
	case FieldXRef:
		r.XRefs = v.Mapping
	case FieldSetAttribute:
		r.Attributes = v.Mapping
	case FieldConstraints:
		r.Constraints = v.Mappings
	case FieldCheck:
		r.Checks = v.Mappings
	case FieldInclude:
		r.Includes = v.Strings
	case FieldVar:
		r.Vars = v.Strings
	case FieldCVSDate:
		r.CVSDate = v.Date
	}
}

// ExtractCommands 在原始文本上找出所有形如 xxx(...); 的语句，
// 去掉已识别的元数据语句后原样返回
func ExtractCommands(contents string) []string {
	commands := []string{}
	for _, m := range commandPattern.FindAllStringSubmatch(contents, -1) {
		if isRecognized(m[1]) {
			continue
		}
		commands = append(commands, m[1])
	}
	return commands
}

func isRecognized(statement string) bool {
	statement = strings.TrimSpace(statement)
	for _, prefix := range recognizedPrefixes {
		if strings.HasPrefix(statement, prefix) {
			return true
		}
	}
	return false
}
