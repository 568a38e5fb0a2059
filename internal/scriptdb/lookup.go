package scriptdb

import (
	"strings"

	"NaslParser/internal/model"
)

const summaryColumns = `s.path, s.script_id, s.name, s.family, s.category, s.version, s.cvss_score, s.severity`

// LookupByCVE 查找引用了指定CVE的脚本，按分数从高到低
func (sd *ScriptDatabase) LookupByCVE(cveID string) ([]model.ScriptSummary, error) {
	query := `
	SELECT DISTINCT ` + summaryColumns + `
	FROM scripts s
	JOIN script_refs r ON s.path = r.path
	WHERE r.ref_type = 'cve' AND UPPER(r.ref_value) = ?
	ORDER BY s.cvss_score DESC, s.path
	`
	return sd.querySummaries(query, strings.ToUpper(strings.TrimSpace(cveID)))
}

// LookupByFamily 按脚本家族查找，不区分大小写
func (sd *ScriptDatabase) LookupByFamily(family string) ([]model.ScriptSummary, error) {
	query := `
	SELECT ` + summaryColumns + `
	FROM scripts s
	WHERE LOWER(s.family) = ?
	ORDER BY s.cvss_score DESC, s.path
	`
	return sd.querySummaries(query, strings.ToLower(strings.TrimSpace(family)))
}

func (sd *ScriptDatabase) querySummaries(query string, args ...interface{}) ([]model.ScriptSummary, error) {
	rows, err := sd.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []model.ScriptSummary{}
	for rows.Next() {
		var s model.ScriptSummary
		if err := rows.Scan(&s.Path, &s.ScriptID, &s.Name, &s.Family, &s.Category,
			&s.Version, &s.CVSSScore, &s.Severity); err != nil {
			sd.logger.Debug("读取查询结果失败: %v", err)
			continue
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}
