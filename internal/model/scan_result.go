package model

// ScriptResult 单个脚本文件的解析结果
type ScriptResult struct {
	Path     string        `json:"path"`
	Record   *ScriptRecord `json:"record,omitempty"`
	Scores   CVSSScores    `json:"scores"`
	Error    string        `json:"error,omitempty"`
	ParseDur string        `json:"parse_duration"`
}

// CVSSScores 由提取出的向量计算的基础分
type CVSSScores struct {
	V2Score    float64 `json:"cvss2_score" yaml:"cvss2_score"`
	V3Score    float64 `json:"cvss3_score" yaml:"cvss3_score"`
	Severity   string  `json:"severity" yaml:"severity"` // NONE, LOW, MEDIUM, HIGH, CRITICAL
	ScoredFrom string  `json:"scored_from,omitempty" yaml:"scored_from,omitempty"`
}

// ScriptSummary 数据库查询返回的脚本摘要
type ScriptSummary struct {
	Path      string  `json:"path" yaml:"path" db:"path"`
	ScriptID  int     `json:"script_id" yaml:"script_id" db:"script_id"`
	Name      string  `json:"name" yaml:"name" db:"name"`
	Family    string  `json:"family" yaml:"family" db:"family"`
	Category  string  `json:"category" yaml:"category" db:"category"`
	Version   string  `json:"version" yaml:"version" db:"version"`
	CVSSScore float64 `json:"cvss_score" yaml:"cvss_score" db:"cvss_score"`
	Severity  string  `json:"severity" yaml:"severity" db:"severity"`
}

// ScanOptions 命令行选项
type ScanOptions struct {
	ConfigFile   string
	DBPath       string
	Workers      int
	Extensions   string
	OutputFile   string
	OutputFormat string // json, yaml, csv, text
	Pretty       bool
	Verbose      bool
}
