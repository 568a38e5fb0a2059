package model

import (
	"encoding/json"
	"time"
)

// CVSDateLayout 导出时日期的统一格式
const CVSDateLayout = "2006-01-02 15:04:05"

// CVSDate 脚本的修改日期，解析失败时保留原始文本
type CVSDate struct {
	Time   time.Time
	Raw    string
	Parsed bool
}

// String 解析成功返回格式化时间，否则返回原始文本
func (d CVSDate) String() string {
	if d.Parsed {
		return d.Time.Format(CVSDateLayout)
	}
	return d.Raw
}

func (d CVSDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *CVSDate) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	if t, err := time.Parse(CVSDateLayout, text); err == nil {
		*d = CVSDate{Time: t, Raw: text, Parsed: true}
		return nil
	}
	*d = CVSDate{Raw: text}
	return nil
}

// ScriptRecord 单个NASL脚本提取出的元数据
type ScriptRecord struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Summary   string `json:"summary"`
	Family    string `json:"family"`
	Copyright string `json:"copyright"`
	Category  string `json:"category"`
	Version   string `json:"version"`

	CVEIDs     []string `json:"cve_id"`
	CWEIDs     []int    `json:"cwe_id"`
	BugtraqIDs []int    `json:"bugtraq_id"`
	OSVDBIDs   []int    `json:"osvdb_id"`

	CVSSBaseVector      string `json:"cvss_base_vector"`
	CVSSTemporalVector  string `json:"cvss_temporal_vector"`
	CVSS3BaseVector     string `json:"cvss3_base_vector"`
	CVSS3TemporalVector string `json:"cvss3_temporal_vector"`

	XRefs       map[string]string   `json:"xref"`
	Attributes  map[string]string   `json:"attributes"`
	Constraints []map[string]string `json:"constraints"`
	Checks      []map[string]string `json:"checks"`

	Includes []string `json:"include"`
	Vars     []string `json:"vars"`

	CVSDate CVSDate `json:"cvs_date"`

	// 未被任何字段识别的语句，原样保留
	Commands []string `json:"commands"`
}

// NewScriptRecord 所有字段都初始化为对应类型的空值
func NewScriptRecord() *ScriptRecord {
	return &ScriptRecord{
		CVEIDs:      []string{},
		CWEIDs:      []int{},
		BugtraqIDs:  []int{},
		OSVDBIDs:    []int{},
		XRefs:       map[string]string{},
		Attributes:  map[string]string{},
		Constraints: []map[string]string{},
		Checks:      []map[string]string{},
		Includes:    []string{},
		Vars:        []string{},
		Commands:    []string{},
	}
}

var canonicalKeys = []string{
	"id", "name", "summary", "version", "checks", "cvs_date",
	"cve_id", "cwe_id", "bugtraq_id", "osvdb_id", "family", "copyright",
	"xref", "attributes", "cvss_base_vector", "cvss_temporal_vector",
	"cvss3_base_vector", "cvss3_temporal_vector", "category",
	"constraints", "vars", "include", "commands",
}

var presentationKeys = []string{
	"ID", "Name", "Summary", "Version", "Checks", "CVS Date",
	"CVE IDs", "CWE IDs", "Bugtraq IDs", "OSVDB IDs", "Vulnerability Family", "Copyright",
	"XREFs", "Attributes", "CVSS Base Vector", "CVSS Temporal Vector",
	"CVSS3 Base Vector", "CVSS3 Temporal Vector", "Category",
	"constraints", "vars", "include", "commands",
}

// ExportKeys 导出键的固定顺序，pretty为true时使用展示用键名
func ExportKeys(pretty bool) []string {
	keys := canonicalKeys
	if pretty {
		keys = presentationKeys
	}
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// ToMap 导出为普通映射，键集合固定，与匹配到哪些字段无关
func (r *ScriptRecord) ToMap(pretty bool) map[string]interface{} {
	values := []interface{}{
		r.ID, r.Name, r.Summary, r.Version, r.Checks, r.CVSDate.String(),
		r.CVEIDs, r.CWEIDs, r.BugtraqIDs, r.OSVDBIDs, r.Family, r.Copyright,
		r.XRefs, r.Attributes, r.CVSSBaseVector, r.CVSSTemporalVector,
		r.CVSS3BaseVector, r.CVSS3TemporalVector, r.Category,
		r.Constraints, r.Vars, r.Includes, r.Commands,
	}

	keys := canonicalKeys
	if pretty {
		keys = presentationKeys
	}

	out := make(map[string]interface{}, len(keys))
	for i, key := range keys {
		out[key] = values[i]
	}
	return out
}
