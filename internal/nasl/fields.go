package nasl

import (
	"regexp"
)

// FieldID 记录中的字段
type FieldID int

const (
	FieldScriptID FieldID = iota
	FieldName
	FieldSummary
	FieldFamily
	FieldCopyright
	FieldCategory
	FieldVersion
	FieldCVEID
	FieldCWEID
	FieldBugtraqID
	FieldOSVDBID
	FieldCVSSBaseVector
	FieldCVSSTemporalVector
	FieldCVSS3BaseVector
	FieldCVSS3TemporalVector
	FieldXRef
	FieldSetAttribute
	FieldConstraints
	FieldCheck
	FieldInclude
	FieldVar
	FieldCVSDate
)

// Strategy 字段提取策略，按声明顺序尝试，先匹配者胜出
type Strategy int

const (
	// script_<field>( args );
	StrategyScriptCall Strategy = iota
	// if ( ... <field>( args )) flag++;
	StrategyGuardedCheck
	// constraints = { k:v, ... };
	StrategyConstraintsLiteral
	// <field>( args );
	StrategyGenericCall
	// <field> lhs = rhs;
	StrategyGenericAssignment

	strategyCount
)

var strategyNames = [strategyCount]string{
	"script-call", "guarded-check", "constraints-literal", "generic-call", "generic-assignment",
}

func (s Strategy) String() string {
	if s >= 0 && s < strategyCount {
		return strategyNames[s]
	}
	return "unknown"
}

// Field 字段表中的一行
type Field struct {
	ID         FieldID
	Name       string // 出现在脚本语句里的名字
	Kind       Kind
	Strategies []Strategy

	patterns [strategyCount]*regexp.Regexp
}

var (
	metadataStrategies = []Strategy{
		StrategyScriptCall, StrategyGuardedCheck, StrategyGenericCall, StrategyGenericAssignment,
	}
	constraintStrategies = []Strategy{
		StrategyScriptCall, StrategyGuardedCheck, StrategyConstraintsLiteral,
	}
)

// scriptFields 静态字段表，驱动整个提取循环
var scriptFields = compileFields([]Field{
	{ID: FieldScriptID, Name: "id", Kind: KindInteger, Strategies: metadataStrategies},
	{ID: FieldName, Name: "name", Kind: KindLocalizedText, Strategies: metadataStrategies},
	{ID: FieldSummary, Name: "summary", Kind: KindLocalizedText, Strategies: metadataStrategies},
	{ID: FieldFamily, Name: "family", Kind: KindLocalizedText, Strategies: metadataStrategies},
	{ID: FieldCopyright, Name: "copyright", Kind: KindLocalizedText, Strategies: metadataStrategies},
	{ID: FieldCategory, Name: "category", Kind: KindText, Strategies: metadataStrategies},
	{ID: FieldVersion, Name: "version", Kind: KindVersion, Strategies: metadataStrategies},
	{ID: FieldCVEID, Name: "cve_id", Kind: KindStringList, Strategies: metadataStrategies},
	{ID: FieldCWEID, Name: "cwe_id", Kind: KindIntegerList, Strategies: metadataStrategies},
	{ID: FieldBugtraqID, Name: "bugtraq_id", Kind: KindIntegerList, Strategies: metadataStrategies},
	{ID: FieldOSVDBID, Name: "osvdb_id", Kind: KindIntegerList, Strategies: metadataStrategies},
	{ID: FieldCVSSBaseVector, Name: "set_cvss_base_vector", Kind: KindText, Strategies: metadataStrategies},
	{ID: FieldCVSSTemporalVector, Name: "set_cvss_temporal_vector", Kind: KindText, Strategies: metadataStrategies},
	{ID: FieldCVSS3BaseVector, Name: "set_cvss3_base_vector", Kind: KindText, Strategies: metadataStrategies},
	{ID: FieldCVSS3TemporalVector, Name: "set_cvss3_temporal_vector", Kind: KindText, Strategies: metadataStrategies},
	{ID: FieldXRef, Name: "xref", Kind: KindMapping, Strategies: metadataStrategies},
	{ID: FieldSetAttribute, Name: "set_attribute", Kind: KindMapping, Strategies: metadataStrategies},
	{ID: FieldConstraints, Name: "constraints", Kind: KindMappingList, Strategies: constraintStrategies},
	{ID: FieldCheck, Name: "check", Kind: KindMappingList, Strategies: metadataStrategies},
	{ID: FieldInclude, Name: "include", Kind: KindStringList, Strategies: metadataStrategies},
	{ID: FieldVar, Name: "var", Kind: KindStringList, Strategies: metadataStrategies},
	{ID: FieldCVSDate, Name: "cvs_date", Kind: KindDateTime, Strategies: metadataStrategies},
})

// recognizedPrefixes 以这些前缀开头的语句不计入commands
var recognizedPrefixes = []string{
	"set_cvss_base_vector",
	"set_cvss_temporal_vector",
	"script_set_cvss3_base_vector",
	"script_set_cvss3_temporal_vector",
	"category", "name", "summary", "family", "copyright",
	"cve_id", "bugtraq_id", "osvdb_id", "cwe_id",
	"xref", "set_attribute", "check", "constraints",
	"cvs_date", "version", "var", "include", "exit",
	"script_",
}

// Fields 返回字段表的副本，按提取顺序排列
func Fields() []Field {
	out := make([]Field, len(scriptFields))
	copy(out, scriptFields)
	return out
}

func compileFields(fields []Field) []Field {
	for i := range fields {
		for _, strategy := range fields[i].Strategies {
			fields[i].patterns[strategy] = regexp.MustCompile(strategyPattern(strategy, fields[i].Name))
		}
	}
	return fields
}

func strategyPattern(strategy Strategy, name string) string {
	quoted := regexp.QuoteMeta(name)
	switch strategy {
	case StrategyScriptCall:
		return `script_` + quoted + `\s?\(\s?(.*?)\)\s?;`
	case StrategyGuardedCheck:
		return `if \(.*?` + quoted + `\s?\(([^;]*)\)\) flag\+\+;`
	case StrategyConstraintsLiteral:
		return quoted + `\s+=\s+([^;]*);`
	case StrategyGenericCall:
		return quoted + `[(]([^;]*)[)];`
	case StrategyGenericAssignment:
		return quoted + `\s*([^;^=]*)\s*=\s*([^;]*);`
	}
	panic("nasl: unknown strategy " + strategy.String())
}
